// Package ytdlp runs the yt-dlp executable to list collections and fetch audio.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/time/rate"
)

const defaultPath = "yt-dlp"

type Client struct {
	// Path to the executable. Empty means "yt-dlp" on PATH.
	Path string

	// CookiesFile is passed as --cookies when set. yt-dlp may rewrite it.
	CookiesFile string

	// ExtraArgs precede the per-call arguments of every invocation.
	ExtraArgs []string

	// Limiter, when set, spaces out invocations so bursts of resolves and downloads stay
	// under the source's rate limits.
	Limiter *rate.Limiter

	// LogCallback receives every non-empty output line as it is produced. Progress
	// lines end in \r, so both \r and \n end a line.
	LogCallback func(stream, line string)

	execFn func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

func New() *Client {
	return &Client{Path: defaultPath}
}

// PathOrDefault returns Path, or "yt-dlp" when Path is blank.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return defaultPath
	}
	return c.Path
}

// ExecError is a yt-dlp invocation that ran and failed.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	cmdline := strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))
	msg := "ytdlp: command failed: " + cmdline
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("ytdlp: command failed (exit %d): %s", e.ExitCode, cmdline)
	}
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Cause }

func wrapExecError(cmd string, args []string, stdout, stderr []byte, cause error) error {
	code := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		code = ee.ExitCode()
	}
	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: code,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// run executes yt-dlp with args. A run that failed is returned as *ExecError; a missing
// binary or a cancelled context is returned as is.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := c.exec(ctx, args...)
	if err == nil {
		return stdout, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var lookErr *exec.Error
	if errors.As(err, &lookErr) || errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ytdlp: %w", err)
	}
	return nil, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
}

func (c *Client) exec(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	name := c.PathOrDefault()
	full := make([]string, 0, len(c.ExtraArgs)+len(args)+3)
	full = append(full, c.ExtraArgs...)
	if c.LogCallback != nil {
		full = append(full, "--newline")
	}
	if strings.TrimSpace(c.CookiesFile) != "" {
		full = append(full, "--cookies", c.CookiesFile)
	}
	full = append(full, args...)

	if c.execFn != nil {
		return c.execFn(ctx, name, full...)
	}

	slog.Debug("ytdlp: running", "cmd", name, "args", full)
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, full...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if c.LogCallback != nil {
		cmd.Stdout = &lineWriter{stream: "stdout", emit: c.LogCallback, buf: &outBuf}
		cmd.Stderr = &lineWriter{stream: "stderr", emit: c.LogCallback, buf: &errBuf}
	}
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Version returns the output of yt-dlp --version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Update runs yt-dlp -U. Extractors break often enough that workers do this at startup.
func (c *Client) Update(ctx context.Context, extraArgs ...string) error {
	_, err := c.run(ctx, append([]string{"-U"}, extraArgs...)...)
	return err
}

// lineWriter copies output into buf and hands each complete line to emit.
type lineWriter struct {
	stream  string
	emit    func(stream, line string)
	buf     *bytes.Buffer
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexAny(w.partial, "\r\n")
		if i < 0 {
			return len(p), nil
		}
		if line := strings.TrimSpace(string(w.partial[:i])); line != "" {
			w.emit(w.stream, line)
		}
		skip := 1
		if w.partial[i] == '\r' && i+1 < len(w.partial) && w.partial[i+1] == '\n' {
			skip = 2
		}
		w.partial = w.partial[i+skip:]
	}
}
