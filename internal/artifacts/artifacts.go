// Package artifacts stores media segments and transcript documents under stable keys:
//
//	raw/<video_id>/<file>
//	transcripts/<video_id>/<file base>.json
//
// Keys are shared between the processor that writes segments and the ingestor that reads
// them, so both must point at the same backend.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/scribe/internal/metrics"
)

var ErrNotFound = errors.New("artifacts: not found")

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

func RawKey(videoID, file string) string {
	return path.Join("raw", videoID, path.Base(filepath.ToSlash(file)))
}

// TranscriptKey names the transcript document stored for a raw segment file.
func TranscriptKey(videoID, file string) string {
	base := path.Base(filepath.ToSlash(file))
	return path.Join("transcripts", videoID, strings.TrimSuffix(base, path.Ext(base))+".json")
}

// VideoIDFromKey returns the video id segment of a raw or transcript key.
func VideoIDFromKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("artifacts: invalid key %q", key)
	}
	for _, p := range strings.Split(key, "/") {
		if p == "" || p == "." || p == ".." {
			return fmt.Errorf("artifacts: invalid key %q", key)
		}
	}
	return nil
}

// Upload copies the local file at src to key.
func Upload(ctx context.Context, s Store, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err := s.Put(ctx, key, f, contentType(src)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	metrics.ArtifactBytes.Add(float64(info.Size()))
	slog.Debug("artifact uploaded", "key", key, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}

// Download copies key into destDir, keeping the key's file name, and returns the local path.
func Download(ctx context.Context, s Store, key, destDir string) (string, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, path.Base(key))

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("download %s: %w", key, err)
	}

	slog.Debug("artifact downloaded", "key", key, "size", humanize.Bytes(uint64(n)))
	return dest, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mka":
		return "audio/x-matroska"
	case ".webm":
		return "audio/webm"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
