// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the audio work scribe does:
// splitting downloads into fixed-length chunks and converting chunks for whisper.
package ffmpeg

import (
	"context"
	"strconv"
	"time"
)

// Command is one ffmpeg invocation reading input and writing output.
type Command struct {
	input   string
	output  string
	global  []string // before -i
	outArgs []string // after -i
}

// Option adds arguments to a Command. Options may be given in any order; Build places
// global and output arguments where ffmpeg expects them.
type Option func(cmd *Command)

func NewCommand(input, output string, opts ...Option) *Command {
	cmd := &Command{input: input, output: output}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

// Build returns the argument list, without the binary name.
func (c *Command) Build() []string {
	args := make([]string, 0, 6+len(c.global)+len(c.outArgs))
	args = append(args, "-hide_banner", "-nostdin", "-y")
	args = append(args, c.global...)
	args = append(args, "-i", c.input)
	args = append(args, c.outArgs...)
	return append(args, c.output)
}

func (c *Command) Run(ctx context.Context) error {
	_, err := run(ctx, Binary, c.Build())
	return err
}

// Run builds and runs a Command in one call.
func Run(ctx context.Context, input, output string, opts ...Option) error {
	return NewCommand(input, output, opts...).Run(ctx)
}

// LogLevel sets -loglevel.
func LogLevel(level string) Option {
	return func(cmd *Command) {
		cmd.global = append(cmd.global, "-loglevel", level)
	}
}

// MapStream selects an input stream, e.g. "0:a:0" for the first audio track.
func MapStream(spec string) Option {
	return func(cmd *Command) {
		cmd.outArgs = append(cmd.outArgs, "-map", spec)
	}
}

// NoVideo drops video (-vn).
func NoVideo(cmd *Command) {
	cmd.outArgs = append(cmd.outArgs, "-vn")
}

// CopyAudio stream-copies audio (-c:a copy).
func CopyAudio(cmd *Command) {
	cmd.outArgs = append(cmd.outArgs, "-c:a", "copy")
}

func AudioCodec(codec string) Option {
	return func(cmd *Command) {
		cmd.outArgs = append(cmd.outArgs, "-c:a", codec)
	}
}

func AudioChannels(n int) Option {
	return func(cmd *Command) {
		cmd.outArgs = append(cmd.outArgs, "-ac", strconv.Itoa(n))
	}
}

func AudioSampleRate(hz int) Option {
	return func(cmd *Command) {
		cmd.outArgs = append(cmd.outArgs, "-ar", strconv.Itoa(hz))
	}
}

// Segment switches to the segment muxer, cutting every d with timestamps restarting at
// zero in each chunk. The output must be a printf pattern such as "talk_%03d.m4a".
func Segment(d time.Duration) Option {
	return func(cmd *Command) {
		cmd.outArgs = append(cmd.outArgs,
			"-f", "segment",
			"-segment_time", seconds(d),
			"-reset_timestamps", "1",
		)
	}
}

// seconds formats d the way ffmpeg reads time values: seconds with millisecond precision.
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
