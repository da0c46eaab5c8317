package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// AudioInfo describes a media file as far as scribe cares: how long it is and what
// its first audio track looks like.
type AudioInfo struct {
	Duration   float64 // seconds
	Format     string
	Codec      string
	Channels   int
	SampleRate int
	Bitrate    int64
	// AudioStreams counts every audio track, not only the one described above.
	AudioStreams int
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func Probe(ctx context.Context, path string) (*AudioInfo, error) {
	out, err := run(ctx, ProbeBinary, []string{
		"-hide_banner",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	})
	if err != nil {
		return nil, err
	}
	return parseProbe(out)
}

// ProbeDuration returns the length of path in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func parseProbe(data []byte) (*AudioInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ffprobe: parse output: %w", err)
	}

	info := &AudioInfo{Format: out.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.AudioStreams++
		if info.AudioStreams == 1 {
			info.Codec = s.CodecName
			info.Channels = s.Channels
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		}
	}
	return info, nil
}
