package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/internal/results"
	"thirdcoast.systems/scribe/internal/units"
)

type fakeSubmitter struct {
	got pipeline.Request
	sub pipeline.Submission
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, req pipeline.Request) (pipeline.Submission, error) {
	f.got = req
	return f.sub, f.err
}

type fakeSearcher struct {
	got  results.SearchParams
	hits []results.Hit
}

func (f *fakeSearcher) Search(_ context.Context, p results.SearchParams) ([]results.Hit, error) {
	f.got = p
	return f.hits, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Units == nil {
		opts.Units = units.NewMemoryStore()
	}
	if opts.Submitter == nil {
		opts.Submitter = &fakeSubmitter{}
	}
	return NewServer(opts)
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAccepted(t *testing.T) {
	sub := &fakeSubmitter{sub: pipeline.Submission{Kind: pipeline.KindSingle, ID: "dQw4w9WgXcQ", Items: 1}}
	s := newTestServer(t, Options{Submitter: sub, MaxItems: 50})

	rec := do(s, http.MethodPost, "/api/submissions", `{"reference":"https://youtu.be/dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, true, got["accepted"])
	require.Equal(t, "dQw4w9WgXcQ", got["id"])
	require.Equal(t, "https://youtu.be/dQw4w9WgXcQ", sub.got.Reference)
	require.Equal(t, 50, sub.got.MaxItems)
}

func TestSubmitCapsMaxItems(t *testing.T) {
	sub := &fakeSubmitter{}
	s := newTestServer(t, Options{Submitter: sub, MaxItems: 10})

	rec := do(s, http.MethodPost, "/api/submissions", `{"reference":"x","max_items":500}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 10, sub.got.MaxItems)

	rec = do(s, http.MethodPost, "/api/submissions", `{"reference":"x","max_items":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 3, sub.got.MaxItems)
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "malformed json", body: `{"reference":`, want: http.StatusBadRequest},
		{name: "missing reference", body: `{"reference":"  "}`, want: http.StatusBadRequest},
		{name: "negative max", body: `{"reference":"x","max_items":-1}`, want: http.StatusBadRequest},
		{name: "invalid reference", body: `{"reference":"ftp://nope"}`, err: fmt.Errorf("%w: bad host", pipeline.ErrInvalidReference), want: http.StatusUnprocessableEntity},
		{name: "empty collection", body: `{"reference":"x"}`, err: pipeline.ErrEmptyCollection, want: http.StatusUnprocessableEntity},
		{name: "queue down", body: `{"reference":"x"}`, err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Options{Submitter: &fakeSubmitter{err: tt.err}})
			rec := do(s, http.MethodPost, "/api/submissions", tt.body)
			require.Equal(t, tt.want, rec.Code)

			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Equal(t, false, got["accepted"])
			require.NotEmpty(t, got["error"])
		})
	}
}

func TestGetUnit(t *testing.T) {
	store := units.NewMemoryStore()
	_, err := store.CreateIfAbsent(context.Background(), units.Unit{ID: "vid", Status: units.StatusInProgress, SegmentCount: units.Int64(3)})
	require.NoError(t, err)
	s := newTestServer(t, Options{Units: store})

	rec := do(s, http.MethodGet, "/api/units/vid", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var u units.Unit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	require.Equal(t, "vid", u.ID)
	require.Equal(t, units.StatusInProgress, u.Status)
	require.Equal(t, int64(3), *u.SegmentCount)

	rec = do(s, http.MethodGet, "/api/units/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWait(t *testing.T) {
	store := units.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateIfAbsent(ctx, units.Unit{ID: "done", Status: units.StatusCompleted})
	require.NoError(t, err)
	_, err = store.CreateIfAbsent(ctx, units.Unit{ID: "busy", Status: units.StatusInProgress})
	require.NoError(t, err)
	s := newTestServer(t, Options{Units: store, PollTimeout: time.Second, PollInterval: 10 * time.Millisecond, MinPollInterval: time.Millisecond})

	rec := do(s, http.MethodGet, "/api/units/done/wait", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got waitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, pipeline.OutcomeCompleted, got.Outcome)
	require.Equal(t, "done", got.Unit.ID)

	rec = do(s, http.MethodGet, "/api/units/busy/wait?timeout=50ms&interval=10ms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = waitResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, pipeline.OutcomeTimeout, got.Outcome)
	require.Equal(t, units.StatusInProgress, got.Unit.Status)

	rec = do(s, http.MethodGet, "/api/units/never/wait?timeout=30ms&interval=10ms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = waitResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, pipeline.OutcomeTimeout, got.Outcome)
	require.Nil(t, got.Unit)

	rec = do(s, http.MethodGet, "/api/units/busy/wait?timeout=soon", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type countingStore struct {
	units.Store
	gets atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, id string) (units.Unit, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, id)
}

func TestWaitIntervalHasFloor(t *testing.T) {
	store := &countingStore{Store: units.NewMemoryStore()}
	_, err := store.CreateIfAbsent(context.Background(), units.Unit{ID: "busy", Status: units.StatusInProgress})
	require.NoError(t, err)
	s := newTestServer(t, Options{Units: store, PollTimeout: time.Second, MinPollInterval: 50 * time.Millisecond})

	rec := do(s, http.MethodGet, "/api/units/busy/wait?timeout=120ms&interval=1ns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.LessOrEqual(t, store.gets.Load(), int64(4))
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{hits: []results.Hit{{VideoID: "vid", Text: "hello world", Link: "https://www.youtube.com/watch?v=vid&t=3s"}}}
	s := newTestServer(t, Options{Search: searcher})

	rec := do(s, http.MethodGet, "/api/search?q=hello&channel_id=chan&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", searcher.got.Query)
	require.Equal(t, "chan", searcher.got.ChannelID)
	require.Equal(t, 5, searcher.got.Limit)
	require.Contains(t, rec.Body.String(), "watch?v=vid")

	require.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/search", "").Code)
	require.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/search?q=x&limit=ten", "").Code)

	bare := newTestServer(t, Options{})
	require.Equal(t, http.StatusNotImplemented, do(bare, http.MethodGet, "/api/search?q=x", "").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", "").Code)

	down := newTestServer(t, Options{Health: func(context.Context) error { return errors.New("db down") }})
	require.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/healthz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
