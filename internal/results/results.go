// Package results persists transcribed segments into the videos and transcript_lines
// tables and serves full text search over them.
package results

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"thirdcoast.systems/scribe/internal/db"
	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/pkg/langtag"
)

// DeepLinkLeadSeconds is how far before a hit a deep link starts playback.
const DeepLinkLeadSeconds = 2

type Store struct {
	dbc *db.DatabaseConnection
}

var _ pipeline.ResultSink = (*Store)(nil)

func New(dbc *db.DatabaseConnection) *Store {
	return &Store{dbc: dbc}
}

// SaveSegment upserts the video row and replaces the lines of one segment. Line times
// are shifted by the segment offset so they are absolute within the source video.
// Saving the same segment again overwrites it in place and trims lines a previous,
// longer transcript left behind.
func (s *Store) SaveSegment(ctx context.Context, r pipeline.SegmentResult) error {
	lang := langtag.Parse(r.Transcript.Language)

	err := s.dbc.InTx(ctx, func(q *db.Queries) error {
		if err := q.UpsertVideo(ctx, videoParams(r)); err != nil {
			return fmt.Errorf("upsert video %s: %w", r.VideoID, err)
		}

		for i, line := range r.Transcript.Lines {
			err := q.UpsertTranscriptLine(ctx, &db.UpsertTranscriptLineParams{
				VideoID:      r.VideoID,
				SegmentIndex: int32(r.SegmentIndex),
				LineIndex:    int32(i),
				StartMs:      r.OffsetMs + line.StartMs,
				EndMs:        r.OffsetMs + line.EndMs,
				Text:         line.Text,
				Lang:         lang,
			})
			if err != nil {
				return fmt.Errorf("upsert line %s/%d/%d: %w", r.VideoID, r.SegmentIndex, i, err)
			}
		}

		err := q.DeleteTranscriptLinesFrom(ctx, &db.DeleteTranscriptLinesFromParams{
			VideoID:      r.VideoID,
			SegmentIndex: int32(r.SegmentIndex),
			LineIndex:    int32(len(r.Transcript.Lines)),
		})
		if err != nil {
			return fmt.Errorf("trim lines %s/%d: %w", r.VideoID, r.SegmentIndex, err)
		}
		return nil
	})
	return rejected(err)
}

// rejected marks data exceptions (class 22) and integrity violations (class 23) as
// rejections of the segment itself. Anything else is left for redelivery.
func rejected(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return fmt.Errorf("%w: %w", pipeline.ErrResultRejected, err)
	}
	return err
}

func videoParams(r pipeline.SegmentResult) *db.UpsertVideoParams {
	m := r.Metadata
	p := &db.UpsertVideoParams{
		ID:          r.VideoID,
		SourceURL:   r.SourceURL,
		Title:       nilIfEmpty(m.Title),
		ChannelID:   nilIfEmpty(m.ChannelID),
		ChannelName: nilIfEmpty(m.ChannelName),
		Platform:    nilIfEmpty(m.Platform),
		UploadDate:  db.DateFromYYYYMMDD(m.UploadDate),
		Metadata:    db.Metadata{},
	}
	if m.DurationSeconds > 0 {
		d := int32(min(m.DurationSeconds, math.MaxInt32))
		p.DurationSeconds = &d
	}
	if r.Transcript.Language != "" {
		p.Metadata["transcript_language"] = langtag.Parse(r.Transcript.Language).String()
	}
	return p
}

type SearchParams struct {
	Query     string
	VideoID   string
	ChannelID string
	Limit     int
}

type Hit struct {
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title,omitempty"`
	ChannelName string     `json:"channel_name,omitempty"`
	UploadDate  *time.Time `json:"upload_date,omitempty"`
	StartMs     int64      `json:"start_ms"`
	EndMs       int64      `json:"end_ms"`
	Text        string     `json:"text"`
	Rank        float32    `json:"rank"`
	Link        string     `json:"link"`
}

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

func (s *Store) Search(ctx context.Context, p SearchParams) ([]Hit, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, fmt.Errorf("search: query is required")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	rows, err := s.dbc.Queries(ctx).SearchTranscriptLines(ctx, &db.SearchTranscriptLinesParams{
		Query:      query,
		VideoID:    nilIfEmpty(p.VideoID),
		ChannelID:  nilIfEmpty(p.ChannelID),
		MaxResults: int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		h := Hit{
			VideoID: r.VideoID,
			StartMs: r.StartMs,
			EndMs:   r.EndMs,
			Text:    r.Text,
			Rank:    r.Rank,
			Link:    DeepLink(r.VideoID, r.SourceURL, r.StartMs),
		}
		if r.Title != nil {
			h.Title = *r.Title
		}
		if r.ChannelName != nil {
			h.ChannelName = *r.ChannelName
		}
		if r.UploadDate.Valid {
			t := r.UploadDate.Time
			h.UploadDate = &t
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// DeepLink points at a moment shortly before startMs. YouTube videos get a watch URL
// with a t parameter; other sources fall back to their stored URL.
func DeepLink(videoID, sourceURL string, startMs int64) string {
	secs := max(startMs/1000-DeepLinkLeadSeconds, 0)

	u, err := url.Parse(sourceURL)
	if err != nil || !isYouTube(u.Hostname()) {
		return sourceURL
	}
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID) + "&t=" + strconv.FormatInt(secs, 10) + "s"
}

func isYouTube(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	return host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

func nilIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
