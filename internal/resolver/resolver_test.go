package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/pkg/ytdlp"
)

type fakeLister struct {
	gotURL   string
	gotLimit int
	entries  []ytdlp.Entry
	err      error
}

func (f *fakeLister) FlatPlaylist(_ context.Context, url string, limit int, _ ...string) ([]ytdlp.Entry, error) {
	f.gotURL = url
	f.gotLimit = limit
	return f.entries, f.err
}

func TestClassify(t *testing.T) {
	t.Parallel()
	r := New(&fakeLister{})

	tests := []struct {
		raw      string
		kind     pipeline.Kind
		itemID   string
		hasBatch bool
	}{
		{raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", kind: pipeline.KindSingle, itemID: "dQw4w9WgXcQ"},
		{raw: "dQw4w9WgXcQ", kind: pipeline.KindSingle, itemID: "dQw4w9WgXcQ"},
		{raw: "https://www.youtube.com/@somechannel", kind: pipeline.KindChannel, hasBatch: true},
		{raw: "https://www.youtube.com/playlist?list=PL123", kind: pipeline.KindPlaylist, hasBatch: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ref, err := r.Classify(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.kind, ref.Kind)
			require.Equal(t, tt.itemID, ref.ItemID)
			require.Equal(t, tt.hasBatch, ref.BatchKey != "")
		})
	}

	_, err := r.Classify("not a reference at all")
	require.Error(t, err)
}

func TestClassify_BatchKeyIsStable(t *testing.T) {
	t.Parallel()
	r := New(&fakeLister{})

	a, err := r.Classify("https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	b, err := r.Classify("https://youtube.com/playlist?list=PL123&index=4")
	require.NoError(t, err)
	require.Equal(t, a.BatchKey, b.BatchKey)

	c, err := r.Classify("https://youtube.com/playlist?list=PL999")
	require.NoError(t, err)
	require.NotEqual(t, a.BatchKey, c.BatchKey)
}

func TestResolve_ChannelListsVideosTab(t *testing.T) {
	t.Parallel()
	l := &fakeLister{entries: []ytdlp.Entry{
		{Type: "url", ID: "aaaaaaaaaaa", URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{Type: "playlist", ID: "UCxyz", URL: "https://www.youtube.com/@somechannel/shorts"},
		{Type: "url", ID: "bbbbbbbbbbb"},
		{Type: "url"},
	}}
	r := New(l)

	ref, err := r.Classify("https://www.youtube.com/@somechannel")
	require.NoError(t, err)

	items, err := r.Resolve(context.Background(), ref, 0)
	require.NoError(t, err)
	require.Equal(t, "https://youtube.com/@somechannel/videos", l.gotURL)
	require.Equal(t, []pipeline.Item{
		{ID: "aaaaaaaaaaa", URL: "https://youtube.com/watch?v=aaaaaaaaaaa"},
		{ID: "bbbbbbbbbbb", URL: "https://youtube.com/watch?v=bbbbbbbbbbb"},
	}, items)
}

func TestResolve_HonoursLimit(t *testing.T) {
	t.Parallel()
	l := &fakeLister{entries: []ytdlp.Entry{
		{ID: "aaaaaaaaaaa"}, {ID: "bbbbbbbbbbb"}, {ID: "ccccccccccc"},
	}}
	r := New(l)

	items, err := r.Resolve(context.Background(), pipeline.Reference{Kind: pipeline.KindPlaylist, URL: "https://youtube.com/playlist?list=PL1"}, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, l.gotLimit)
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := New(&fakeLister{err: boom})

	_, err := r.Resolve(context.Background(), pipeline.Reference{Kind: pipeline.KindPlaylist, URL: "https://youtube.com/playlist?list=PL1"}, 0)
	require.ErrorIs(t, err, boom)

	_, err = r.Resolve(context.Background(), pipeline.Reference{Kind: pipeline.KindSingle}, 0)
	require.Error(t, err)
}
