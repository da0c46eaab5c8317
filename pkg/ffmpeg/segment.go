package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SplitAudio cuts the audio track of input into consecutive chunks of length every,
// written to outDir as <prefix>_000<ext>, <prefix>_001<ext> and so on. The audio is
// stream-copied, so cut points land on the nearest packet boundary. It returns the
// chunk paths in playback order.
func SplitAudio(ctx context.Context, input, outDir, prefix string, every time.Duration) ([]string, error) {
	if every <= 0 {
		return nil, fmt.Errorf("ffmpeg: segment length must be positive, got %s", every)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ffmpeg: create segment dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(input))
	if ext == "" || ext == ".webm" {
		// webm chunks lose their cues; matroska keeps opus seekable.
		ext = ".mka"
	}
	pattern := filepath.Join(outDir, prefix+"_%03d"+ext)

	err := Run(ctx, input, pattern,
		LogLevel("error"),
		MapStream("0:a:0"),
		NoVideo,
		CopyAudio,
		Segment(every),
	)
	if err != nil {
		return nil, err
	}
	return SegmentFiles(outDir, prefix, ext)
}

// SegmentFiles lists the chunks SplitAudio wrote for prefix, in index order.
func SegmentFiles(dir, prefix, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_[0-9][0-9][0-9]*"+ext))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
