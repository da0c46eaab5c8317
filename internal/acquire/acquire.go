// Package acquire fetches the audio of one item, cuts it into fixed-length segments and
// uploads them as raw artifacts for the transcription workers.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/scribe/internal/artifacts"
	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/pkg/ffmpeg"
	"thirdcoast.systems/scribe/pkg/ytdlp"
)

// DefaultSegmentDuration is the cut length used when none is configured.
const DefaultSegmentDuration = 15 * time.Minute

// Downloader is implemented by *ytdlp.Client.
type Downloader interface {
	DownloadAudio(ctx context.Context, url string, destDir string, extraArgs ...string) (string, error)
}

type Acquirer struct {
	Downloader Downloader
	Artifacts  artifacts.Store
	// SpoolDir holds per-item working directories, removed after each acquisition.
	SpoolDir        string
	SegmentDuration time.Duration
	Logger          *slog.Logger

	split func(ctx context.Context, input, outDir, prefix string, every time.Duration) ([]string, error)
	probe func(ctx context.Context, path string) (float64, error)
}

var _ pipeline.Acquirer = (*Acquirer)(nil)

func New(d Downloader, store artifacts.Store, spoolDir string, segment time.Duration) *Acquirer {
	return &Acquirer{
		Downloader:      d,
		Artifacts:       store,
		SpoolDir:        spoolDir,
		SegmentDuration: segment,
	}
}

func (a *Acquirer) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Acquirer) segmentDuration() time.Duration {
	if a.SegmentDuration > 0 {
		return a.SegmentDuration
	}
	return DefaultSegmentDuration
}

// Acquire downloads item, splits it and uploads every segment under raw/<item id>/.
// Failures of the tools themselves are returned as is and fail the item; anything
// else is marked transient so the work message is retried.
func (a *Acquirer) Acquire(ctx context.Context, item pipeline.Item) (pipeline.Acquisition, error) {
	log := a.log().With("item_id", item.ID)

	workDir := filepath.Join(a.SpoolDir, item.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return pipeline.Acquisition{}, pipeline.Transient(fmt.Errorf("create spool dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to clean spool dir", "dir", workDir, "error", err)
		}
	}()

	started := time.Now()
	media, err := a.Downloader.DownloadAudio(ctx, item.URL, workDir)
	if err != nil {
		var ee *ytdlp.ExecError
		if errors.As(err, &ee) && ctx.Err() == nil {
			return pipeline.Acquisition{}, fmt.Errorf("download: %w", err)
		}
		return pipeline.Acquisition{}, pipeline.Transient(fmt.Errorf("download: %w", err))
	}
	if info, err := os.Stat(media); err == nil {
		log.Info("downloaded audio", "file", filepath.Base(media), "size", humanize.Bytes(uint64(info.Size())), "took", time.Since(started).Round(time.Millisecond))
	}

	var meta pipeline.Metadata
	if info, err := ytdlp.ReadInfo(media); err != nil {
		log.Warn("no usable info json", "error", err)
	} else {
		meta = metadataFromInfo(*info)
	}
	if meta.DurationSeconds == 0 {
		probe := a.probe
		if probe == nil {
			probe = ffmpeg.ProbeDuration
		}
		if secs, err := probe(ctx, media); err == nil {
			meta.DurationSeconds = int(math.Round(secs))
		} else {
			log.Warn("probe duration failed", "error", err)
		}
	}

	split := a.split
	if split == nil {
		split = ffmpeg.SplitAudio
	}
	every := a.segmentDuration()
	parts, err := split(ctx, media, filepath.Join(workDir, "segments"), item.ID, every)
	if err != nil {
		var fe *ffmpeg.Error
		if errors.As(err, &fe) && ctx.Err() == nil {
			return pipeline.Acquisition{}, fmt.Errorf("segment: %w", err)
		}
		return pipeline.Acquisition{}, pipeline.Transient(fmt.Errorf("segment: %w", err))
	}

	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		key := artifacts.RawKey(item.ID, p)
		if err := artifacts.Upload(ctx, a.Artifacts, key, p); err != nil {
			return pipeline.Acquisition{}, pipeline.Transient(err)
		}
		keys = append(keys, key)
	}

	log.Info("acquired item", "segments", len(keys), "segment_duration", every, "duration_s", meta.DurationSeconds)
	return pipeline.Acquisition{Segments: keys, SegmentDuration: every, Metadata: meta}, nil
}

func metadataFromInfo(info ytdlp.Info) pipeline.Metadata {
	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}
	platform := strings.ToLower(info.ExtractorKey)
	if platform == "" {
		platform = strings.ToLower(info.Extractor)
	}
	return pipeline.Metadata{
		Title:           info.Title,
		ChannelID:       info.ChannelID,
		ChannelName:     channel,
		Platform:        platform,
		UploadDate:      info.UploadDate,
		DurationSeconds: int(math.Round(info.Duration)),
	}
}
