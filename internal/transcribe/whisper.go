// Package transcribe turns raw audio segments into timed transcript lines with
// whisper.cpp's whisper-cli.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"thirdcoast.systems/scribe/internal/artifacts"
	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/pkg/ffmpeg"
	"thirdcoast.systems/scribe/pkg/langtag"
)

// Whisper runs whisper-cli on one segment at a time. whisper-cli reads 16 kHz mono WAV,
// so each segment is converted with ffmpeg first.
type Whisper struct {
	// Path to whisper-cli. Defaults to "whisper-cli" (PATH lookup).
	Path string
	// Model is the ggml model file passed as -m.
	Model string
	// Language is passed as -l unless empty or "auto".
	Language string
	Threads  int
	// Timeout bounds a single whisper-cli run. Zero means no limit beyond ctx.
	Timeout   time.Duration
	ExtraArgs []string

	Artifacts artifacts.Store
	// WorkDir holds per-call temp directories. Empty means os.TempDir().
	WorkDir string
	Logger  *slog.Logger

	execFn  func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
	convert func(ctx context.Context, input, output string) error
}

var _ pipeline.Transcriber = (*Whisper)(nil)

// Error is a failed whisper-cli run.
type Error struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("whisper-cli: %v", e.Err)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("whisper-cli: exit %d", e.ExitCode)
	}
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (w *Whisper) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Whisper) path() string {
	if strings.TrimSpace(w.Path) == "" {
		return "whisper-cli"
	}
	return w.Path
}

// Transcribe fetches the segment at artifactKey, transcribes it and stores the raw
// whisper JSON next to it under transcripts/. Missing artifacts and whisper failures
// are terminal; storage and process start failures are transient.
func (w *Whisper) Transcribe(ctx context.Context, artifactKey string) (pipeline.Transcript, error) {
	dir, err := os.MkdirTemp(w.WorkDir, "whisper-*")
	if err != nil {
		return pipeline.Transcript{}, pipeline.Transient(err)
	}
	defer os.RemoveAll(dir)

	local, err := artifacts.Download(ctx, w.Artifacts, artifactKey, dir)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return pipeline.Transcript{}, err
		}
		return pipeline.Transcript{}, pipeline.Transient(err)
	}

	base := strings.TrimSuffix(local, filepath.Ext(local))
	wav := base + ".16k.wav"
	convert := w.convert
	if convert == nil {
		convert = toWAV
	}
	if err := convert(ctx, local, wav); err != nil {
		var fe *ffmpeg.Error
		if errors.As(err, &fe) && ctx.Err() == nil {
			return pipeline.Transcript{}, fmt.Errorf("convert %s: %w", artifactKey, err)
		}
		return pipeline.Transcript{}, pipeline.Transient(fmt.Errorf("convert %s: %w", artifactKey, err))
	}

	started := time.Now()
	if err := w.run(ctx, wav, base); err != nil {
		var we *Error
		if errors.As(err, &we) && we.ExitCode != 0 && ctx.Err() == nil {
			return pipeline.Transcript{}, err
		}
		return pipeline.Transcript{}, pipeline.Transient(err)
	}

	raw, err := os.ReadFile(base + ".json")
	if err != nil {
		return pipeline.Transcript{}, fmt.Errorf("whisper output for %s: %w", artifactKey, err)
	}
	transcript, err := ParseJSON(raw)
	if err != nil {
		return pipeline.Transcript{}, fmt.Errorf("whisper output for %s: %w", artifactKey, err)
	}

	docKey := artifacts.TranscriptKey(artifacts.VideoIDFromKey(artifactKey), artifactKey)
	if err := w.Artifacts.Put(ctx, docKey, bytes.NewReader(raw), "application/json"); err != nil {
		return pipeline.Transcript{}, pipeline.Transient(fmt.Errorf("store transcript %s: %w", docKey, err))
	}

	w.log().Info("transcribed segment",
		"key", artifactKey,
		"lines", len(transcript.Lines),
		"language", transcript.Language,
		"took", time.Since(started).Round(time.Millisecond))
	return transcript, nil
}

func (w *Whisper) args(input, outBase string) []string {
	args := []string{"-m", w.Model, "-f", input, "-of", outBase, "-oj", "-np"}
	if lang := strings.TrimSpace(w.Language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	if w.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.Threads))
	}
	return append(args, w.ExtraArgs...)
}

func (w *Whisper) run(ctx context.Context, input, outBase string) error {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	args := w.args(input, outBase)
	execFn := w.execFn
	if execFn == nil {
		execFn = execCommand
	}

	slog.Debug("whisper: Executing command", "cmd", w.path(), "args", args)
	_, stderr, err := execFn(ctx, w.path(), args...)
	if err == nil {
		return nil
	}

	exitCode := 0
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exitCode = ee.ExitCode()
	}
	return &Error{Args: args, ExitCode: exitCode, Stderr: string(stderr), Err: err}
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

func toWAV(ctx context.Context, input, output string) error {
	return ffmpeg.Run(ctx, input, output,
		ffmpeg.LogLevel("error"),
		ffmpeg.NoVideo,
		ffmpeg.AudioSampleRate(16000),
		ffmpeg.AudioChannels(1),
		ffmpeg.AudioCodec("pcm_s16le"),
	)
}

type whisperJSON struct {
	Params struct {
		Language string `json:"language"`
	} `json:"params"`
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseJSON reads whisper-cli -oj output. Offsets are milliseconds from the start of
// the input file; blank lines are dropped.
func ParseJSON(b []byte) (pipeline.Transcript, error) {
	var doc whisperJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return pipeline.Transcript{}, fmt.Errorf("parse whisper json: %w", err)
	}

	lang := doc.Result.Language
	if lang == "" {
		lang = doc.Params.Language
	}

	t := pipeline.Transcript{Language: langtag.Parse(lang).String()}
	for _, seg := range doc.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		t.Lines = append(t.Lines, pipeline.Line{StartMs: seg.Offsets.From, EndMs: seg.Offsets.To, Text: text})
	}
	return t, nil
}
