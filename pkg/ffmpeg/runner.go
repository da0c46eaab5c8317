package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executables run by this package. Tests and deployments may point them elsewhere.
var (
	Binary      = "ffmpeg"
	ProbeBinary = "ffprobe"
)

// Error is a failed ffmpeg or ffprobe run. Callers treat it as a problem with the
// media rather than with the host.
type Error struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	tool := e.Tool
	if tool == "" {
		tool = "ffmpeg"
	}
	tail := tailLines(e.Stderr, 3)
	if tail == "" {
		return fmt.Sprintf("%s: %v", tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", tool, e.Err, tail)
}

func (e *Error) Unwrap() error { return e.Err }

// Command returns the command line that failed.
func (e *Error) Command() string {
	tool := e.Tool
	if tool == "" {
		tool = "ffmpeg"
	}
	return tool + " " + strings.Join(e.Args, " ")
}

// run executes bin and returns its stdout. A process that could not be started is
// reported as a plain error; one that ran and failed as *Error.
func run(ctx context.Context, bin string, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: start: %w", bin, err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Tool: bin, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
