package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entry is one item of a flat playlist listing. For channel roots the entries can
// themselves be playlists (the Videos, Shorts and Live tabs).
type Entry struct {
	Type  string `json:"_type"`
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// FlatPlaylist lists a playlist or channel without resolving each entry.
// It uses: --flat-playlist --dump-single-json, plus --playlist-end when limit > 0.
func (c *Client) FlatPlaylist(ctx context.Context, url string, limit int, extraArgs ...string) ([]Entry, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	args := []string{"--flat-playlist", "--dump-single-json", "--no-colors"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, extraArgs...)
	args = append(args, url)

	stdout, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}
	return info.Entries, nil
}
