package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/artifacts"
	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/pkg/ffmpeg"
	"thirdcoast.systems/scribe/pkg/ytdlp"
)

type fakeDownloader struct {
	info string
	err  error
}

func (f *fakeDownloader) DownloadAudio(_ context.Context, _ string, destDir string, _ ...string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	media := filepath.Join(destDir, "abc.m4a")
	if err := os.WriteFile(media, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	if f.info != "" {
		if err := os.WriteFile(filepath.Join(destDir, "abc.info.json"), []byte(f.info), 0o644); err != nil {
			return "", err
		}
	}
	return media, nil
}

func fakeSplit(n int) func(context.Context, string, string, string, time.Duration) ([]string, error) {
	return func(_ context.Context, _ string, outDir, prefix string, _ time.Duration) ([]string, error) {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, err
		}
		var out []string
		for i := range n {
			p := filepath.Join(outDir, fmt.Sprintf("%s_%03d.m4a", prefix, i))
			if err := os.WriteFile(p, []byte{byte(i)}, 0o644); err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}
}

func newTestAcquirer(t *testing.T, d Downloader, parts int) (*Acquirer, *artifacts.Local) {
	t.Helper()
	store := artifacts.NewLocal(t.TempDir())
	a := New(d, store, t.TempDir(), 900*time.Second)
	a.split = fakeSplit(parts)
	a.probe = func(context.Context, string) (float64, error) { return 1234.4, nil }
	return a, store
}

func TestAcquire_UploadsSegmentsAndReadsMetadata(t *testing.T) {
	t.Parallel()
	info := `{"id":"abc","title":"A Talk","channel":"Chan","channel_id":"UC1","extractor_key":"Youtube","upload_date":"20240131","duration":2700.6}`
	a, store := newTestAcquirer(t, &fakeDownloader{info: info}, 3)

	acq, err := a.Acquire(context.Background(), pipeline.Item{ID: "abc", URL: "https://youtube.com/watch?v=abc"})
	require.NoError(t, err)

	require.Equal(t, []string{"raw/abc/abc_000.m4a", "raw/abc/abc_001.m4a", "raw/abc/abc_002.m4a"}, acq.Segments)
	require.Equal(t, 900*time.Second, acq.SegmentDuration)
	require.Equal(t, pipeline.Metadata{
		Title:           "A Talk",
		ChannelID:       "UC1",
		ChannelName:     "Chan",
		Platform:        "youtube",
		UploadDate:      "20240131",
		DurationSeconds: 2701,
	}, acq.Metadata)

	for _, k := range acq.Segments {
		ok, err := store.Exists(context.Background(), k)
		require.NoError(t, err)
		require.True(t, ok, k)
	}

	_, err = os.Stat(filepath.Join(a.SpoolDir, "abc"))
	require.True(t, os.IsNotExist(err), "spool dir must be removed")
}

func TestAcquire_ProbesWhenInfoMissing(t *testing.T) {
	t.Parallel()
	a, _ := newTestAcquirer(t, &fakeDownloader{}, 1)

	acq, err := a.Acquire(context.Background(), pipeline.Item{ID: "abc", URL: "u"})
	require.NoError(t, err)
	require.Equal(t, 1234, acq.Metadata.DurationSeconds)
	require.Len(t, acq.Segments, 1)
}

func TestAcquire_ToolFailureIsTerminal(t *testing.T) {
	t.Parallel()
	a, _ := newTestAcquirer(t, &fakeDownloader{err: &ytdlp.ExecError{Cmd: "yt-dlp", ExitCode: 1, Stderr: "ERROR: Video unavailable"}}, 1)

	_, err := a.Acquire(context.Background(), pipeline.Item{ID: "abc", URL: "u"})
	require.Error(t, err)
	require.False(t, pipeline.IsTransient(err))
}

func TestAcquire_OtherFailuresAreTransient(t *testing.T) {
	t.Parallel()
	a, _ := newTestAcquirer(t, &fakeDownloader{err: errors.New("exec: \"yt-dlp\": executable file not found in $PATH")}, 1)

	_, err := a.Acquire(context.Background(), pipeline.Item{ID: "abc", URL: "u"})
	require.Error(t, err)
	require.True(t, pipeline.IsTransient(err))
}

func TestAcquire_SegmenterFailureIsTerminal(t *testing.T) {
	t.Parallel()
	a, _ := newTestAcquirer(t, &fakeDownloader{}, 1)
	a.split = func(context.Context, string, string, string, time.Duration) ([]string, error) {
		return nil, &ffmpeg.Error{Stderr: "Invalid data found when processing input", Err: errors.New("exit status 1")}
	}

	_, err := a.Acquire(context.Background(), pipeline.Item{ID: "abc", URL: "u"})
	require.Error(t, err)
	require.False(t, pipeline.IsTransient(err))
}

func TestMetadataFromInfo_FallsBackToUploader(t *testing.T) {
	t.Parallel()
	m := metadataFromInfo(ytdlp.Info{Uploader: "Someone", Extractor: "twitch:vod"})
	require.Equal(t, "Someone", m.ChannelName)
	require.Equal(t, "twitch:vod", m.Platform)
}
