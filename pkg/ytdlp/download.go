package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// AudioFormat prefers an m4a stream so segmenting can stream-copy without re-encoding.
const AudioFormat = "bestaudio[ext=m4a]/bestaudio"

// DownloadAudio downloads the best audio-only stream of a single video into destDir
// and returns the path of the produced file:
//
//	<destDir>/<id>.<ext>
//	<destDir>/<id>.info.json
func (c *Client) DownloadAudio(ctx context.Context, url string, destDir string, extraArgs ...string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", fmt.Errorf("ytdlp: destDir is required")
	}

	tmpl := filepath.Join(destDir, "%(id)s.%(ext)s")

	args := []string{
		"-o", tmpl,
		"--format", AudioFormat,
		"--no-playlist",
		"--write-info-json",
		"--no-colors",
		"--no-simulate",
		"--print", "after_move:filepath",
	}
	args = append(args, extraArgs...)
	args = append(args, url)

	stdout, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}

	path := lastLine(string(stdout))
	if path == "" {
		return "", errors.New("ytdlp: download produced no file path")
	}
	return path, nil
}
