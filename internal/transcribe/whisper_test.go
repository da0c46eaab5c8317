package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/artifacts"
	"thirdcoast.systems/scribe/internal/pipeline"
)

const sampleJSON = `{
  "systeminfo": "AVX = 1",
  "params": {"model": "models/ggml-tiny.en.bin", "language": "en", "translate": false},
  "result": {"language": "en"},
  "transcription": [
    {"timestamps": {"from": "00:00:00,000", "to": "00:00:03,200"}, "offsets": {"from": 0, "to": 3200}, "text": " Hello there."},
    {"timestamps": {"from": "00:00:03,200", "to": "00:00:04,000"}, "offsets": {"from": 3200, "to": 4000}, "text": "   "},
    {"timestamps": {"from": "00:00:04,000", "to": "00:00:07,500"}, "offsets": {"from": 4000, "to": 7500}, "text": " General Kenobi."}
  ]
}`

func TestParseJSON(t *testing.T) {
	t.Parallel()

	tr, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)
	require.Equal(t, "en", tr.Language)
	require.Equal(t, []pipeline.Line{
		{StartMs: 0, EndMs: 3200, Text: "Hello there."},
		{StartMs: 4000, EndMs: 7500, Text: "General Kenobi."},
	}, tr.Lines)
}

func TestParseJSON_AutoLanguageIsUndetermined(t *testing.T) {
	t.Parallel()

	tr, err := ParseJSON([]byte(`{"params":{"language":"auto"},"transcription":[]}`))
	require.NoError(t, err)
	require.Equal(t, "und", tr.Language)
	require.Empty(t, tr.Lines)

	_, err = ParseJSON([]byte(`not json`))
	require.Error(t, err)
}

func newTestWhisper(t *testing.T) (*Whisper, *artifacts.Local) {
	t.Helper()
	store := artifacts.NewLocal(t.TempDir())
	require.NoError(t, store.Put(context.Background(), "raw/vid/vid_001.m4a", strings.NewReader("audio"), "audio/mp4"))

	w := &Whisper{Model: "ggml-tiny.en.bin", Language: "en", Threads: 2, Artifacts: store, WorkDir: t.TempDir()}
	w.convert = func(_ context.Context, _, output string) error {
		return os.WriteFile(output, []byte("wav"), 0o644)
	}
	return w, store
}

func TestTranscribe_StoresWhisperJSON(t *testing.T) {
	t.Parallel()
	w, store := newTestWhisper(t)

	var gotArgs []string
	w.execFn = func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		require.Equal(t, "whisper-cli", name)
		gotArgs = args
		var outBase string
		for i, a := range args {
			if a == "-of" {
				outBase = args[i+1]
			}
		}
		return nil, nil, os.WriteFile(outBase+".json", []byte(sampleJSON), 0o644)
	}

	tr, err := w.Transcribe(context.Background(), "raw/vid/vid_001.m4a")
	require.NoError(t, err)
	require.Len(t, tr.Lines, 2)

	require.Contains(t, gotArgs, "-oj")
	require.Contains(t, gotArgs, "ggml-tiny.en.bin")
	require.Equal(t, []string{"-l", "en", "-t", "2"}, gotArgs[len(gotArgs)-4:])

	rc, err := store.Open(context.Background(), "transcripts/vid/vid_001.json")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.JSONEq(t, sampleJSON, string(b))
}

func TestTranscribe_MissingArtifactIsTerminal(t *testing.T) {
	t.Parallel()
	w, _ := newTestWhisper(t)

	_, err := w.Transcribe(context.Background(), "raw/vid/vid_404.m4a")
	require.ErrorIs(t, err, artifacts.ErrNotFound)
	require.False(t, pipeline.IsTransient(err))
}

func TestTranscribe_StartFailureIsTransient(t *testing.T) {
	t.Parallel()
	w, _ := newTestWhisper(t)
	w.execFn = func(context.Context, string, ...string) ([]byte, []byte, error) {
		return nil, nil, errors.New(`exec: "whisper-cli": executable file not found in $PATH`)
	}

	_, err := w.Transcribe(context.Background(), "raw/vid/vid_001.m4a")
	require.Error(t, err)
	require.True(t, pipeline.IsTransient(err))

	var we *Error
	require.ErrorAs(t, err, &we)
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()
	e := &Error{ExitCode: 3, Stderr: "loading model\nerror: failed to read WAV file\n", Err: errors.New("exit status 3")}
	require.Equal(t, "whisper-cli: exit 3: error: failed to read WAV file", e.Error())
}
