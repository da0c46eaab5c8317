package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/db"
	"thirdcoast.systems/scribe/internal/pipeline"
)

func TestDeepLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		source  string
		startMs int64
		want    string
	}{
		{"youtube", "dQw4w9WgXcQ", "https://youtube.com/watch?v=dQw4w9WgXcQ", 905_300, "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=903s"},
		{"clamped at zero", "dQw4w9WgXcQ", "https://youtube.com/watch?v=dQw4w9WgXcQ", 1_000, "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=0s"},
		{"other platform", "9b1f", "https://twitch.tv/videos/123", 60_000, "https://twitch.tv/videos/123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeepLink(tt.id, tt.source, tt.startMs))
		})
	}
}

func TestRejectedOnlyMarksDataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"string too long", &pgconn.PgError{Code: "22001"}, true},
		{"not null violation", fmt.Errorf("upsert video v1: %w", &pgconn.PgError{Code: "23502"}), true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, false},
		{"connection refused", errors.New("failed to connect: dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rejected(tt.err)
			require.Equal(t, tt.want, errors.Is(err, pipeline.ErrResultRejected))
			require.ErrorIs(t, err, tt.err)
		})
	}
	require.NoError(t, rejected(nil))
}

func TestVideoParams(t *testing.T) {
	t.Parallel()

	p := videoParams(pipeline.SegmentResult{
		VideoID:   "v1",
		SourceURL: "https://youtube.com/watch?v=v1",
		Metadata: pipeline.Metadata{
			Title:           "Title",
			UploadDate:      "20240131",
			DurationSeconds: 3600,
		},
		Transcript: pipeline.Transcript{Language: "en-US"},
	})
	require.Equal(t, "Title", *p.Title)
	require.Nil(t, p.ChannelID)
	require.True(t, p.UploadDate.Valid)
	require.Equal(t, int32(3600), *p.DurationSeconds)
	require.Equal(t, "en-US", p.Metadata.String("transcript_language"))
}

// TestStore exercises SaveSegment and Search against SCRIBE_TEST_DATABASE_DSN when set.
func TestStore(t *testing.T) {
	dsn := os.Getenv("SCRIBE_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("SCRIBE_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, dbc.Migrate(ctx))

	s := New(dbc)
	res := pipeline.SegmentResult{
		VideoID:      "zzTestVid01",
		SegmentIndex: 1,
		OffsetMs:     900_000,
		SourceURL:    "https://youtube.com/watch?v=zzTestVid01",
		Metadata:     pipeline.Metadata{Title: "Scribe test"},
		Transcript: pipeline.Transcript{Language: "en", Lines: []pipeline.Line{
			{StartMs: 0, EndMs: 2000, Text: "the quick brown fox"},
			{StartMs: 2000, EndMs: 4000, Text: "jumps over the lazy dog"},
			{StartMs: 4000, EndMs: 6000, Text: "and wanders off"},
		}},
	}
	require.NoError(t, s.SaveSegment(ctx, res))

	// A shorter retry of the same segment must not leave the third line behind.
	res.Transcript.Lines = res.Transcript.Lines[:2]
	require.NoError(t, s.SaveSegment(ctx, res))

	hits, err := s.Search(ctx, SearchParams{Query: "lazy dog", VideoID: "zzTestVid01"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, int64(902_000), hits[0].StartMs)
	require.Equal(t, "https://www.youtube.com/watch?v=zzTestVid01&t=900s", hits[0].Link)

	hits, err = s.Search(ctx, SearchParams{Query: "wanders", VideoID: "zzTestVid01"})
	require.NoError(t, err)
	require.Empty(t, hits)

	_, err = s.Search(ctx, SearchParams{Query: "  "})
	require.Error(t, err)
}
