package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/queue"
	"thirdcoast.systems/scribe/internal/units"
)

type fakeResolver struct {
	items map[string][]Item
	err   error
}

// Classify treats "list:<name>" as a playlist and anything else as a single item id.
func (f *fakeResolver) Classify(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, errors.New("empty reference")
	}
	if name, ok := strings.CutPrefix(raw, "list:"); ok {
		return Reference{Kind: KindPlaylist, URL: raw, BatchKey: "batch-" + name}, nil
	}
	return Reference{Kind: KindSingle, URL: "https://example.test/" + raw, ItemID: raw}, nil
}

func (f *fakeResolver) Resolve(ctx context.Context, ref Reference, limit int) ([]Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[ref.URL], nil
}

type fakeAcquirer struct {
	mu       sync.Mutex
	segments map[string]int
	errs     map[string]error
	calls    map[string]int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, item Item) (Acquisition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[item.ID]++
	if err := f.errs[item.ID]; err != nil {
		return Acquisition{}, err
	}
	n := f.segments[item.ID]
	acq := Acquisition{SegmentDuration: 900 * time.Second, Metadata: Metadata{Title: "title " + item.ID}}
	for i := 0; i < n; i++ {
		acq.Segments = append(acq.Segments, fmt.Sprintf("raw/%s/%s_%03d.m4a", item.ID, item.ID, i))
	}
	return acq, nil
}

type fakeTranscriber struct {
	errs map[string]error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, key string) (Transcript, error) {
	if err := f.errs[key]; err != nil {
		return Transcript{}, err
	}
	return Transcript{Language: "en", Lines: []Line{{StartMs: 0, EndMs: 1500, Text: "hello from " + key}}}, nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved map[string]SegmentResult
	err   error
}

func (f *fakeSink) SaveSegment(ctx context.Context, r SegmentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = map[string]SegmentResult{}
	}
	f.saved[fmt.Sprintf("%s#%d", r.VideoID, r.SegmentIndex)] = r
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type failingPublisher struct {
	okBefore int
	sent     int
}

func (f *failingPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	if f.sent >= f.okBefore {
		return errors.New("queue unavailable")
	}
	f.sent++
	return nil
}

// harness wires every stage over one memory store and queue.
type harness struct {
	store      *units.MemoryStore
	queue      *queue.Memory
	resolver   *fakeResolver
	acquirer   *fakeAcquirer
	transcribe *fakeTranscriber
	sink       *fakeSink
	router     *Router
	processor  *Processor
	ingestor   *Ingestor
	batches    *BatchAggregator
}

func newHarness() *harness {
	h := &harness{
		store:      units.NewMemoryStore(),
		queue:      queue.NewMemory(),
		resolver:   &fakeResolver{items: map[string][]Item{}},
		acquirer:   &fakeAcquirer{segments: map[string]int{}, errs: map[string]error{}},
		transcribe: &fakeTranscriber{errs: map[string]error{}},
		sink:       &fakeSink{},
	}
	h.batches = &BatchAggregator{Store: h.store}
	h.router = &Router{Store: h.store, Resolver: h.resolver, Queue: h.queue}
	h.processor = &Processor{Store: h.store, Acquirer: h.acquirer, Queue: h.queue, Batches: h.batches}
	h.ingestor = &Ingestor{Store: h.store, Transcriber: h.transcribe, Results: h.sink, Batches: h.batches}
	return h
}

func (h *harness) workMessages(t *testing.T) []WorkMessage {
	t.Helper()
	msgs, err := h.queue.Drain(context.Background(), queue.TopicWork)
	require.NoError(t, err)
	out := make([]WorkMessage, 0, len(msgs))
	for _, m := range msgs {
		var w WorkMessage
		require.NoError(t, m.Decode(&w))
		out = append(out, w)
	}
	return out
}

func (h *harness) segmentMessages(t *testing.T) []SegmentMessage {
	t.Helper()
	msgs, err := h.queue.Drain(context.Background(), queue.TopicSegments)
	require.NoError(t, err)
	out := make([]SegmentMessage, 0, len(msgs))
	for _, m := range msgs {
		var s SegmentMessage
		require.NoError(t, m.Decode(&s))
		out = append(out, s)
	}
	return out
}

func (h *harness) get(t *testing.T, id string) units.Unit {
	t.Helper()
	u, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}
