package ytdlp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Info holds the fields of yt-dlp's JSON document that scribe reads.
type Info struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	WebpageURL   string  `json:"webpage_url"`
	Extractor    string  `json:"extractor"`
	ExtractorKey string  `json:"extractor_key"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	ChannelID    string  `json:"channel_id"`
	UploadDate   string  `json:"upload_date"`
	Duration     float64 `json:"duration"`
	Entries      []Entry `json:"entries,omitempty"`
}

// InfoPath is where --write-info-json puts the document for a downloaded media file.
func InfoPath(media string) string {
	return strings.TrimSuffix(media, filepath.Ext(media)) + ".info.json"
}

// ReadInfo loads the info document written next to media.
func ReadInfo(media string) (*Info, error) {
	p := InfoPath(media)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse %s: %w", filepath.Base(p), err)
	}
	return &info, nil
}
