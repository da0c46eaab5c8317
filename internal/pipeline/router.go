package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thirdcoast.systems/scribe/internal/metrics"
	"thirdcoast.systems/scribe/internal/queue"
	"thirdcoast.systems/scribe/internal/units"
)

type Request struct {
	Reference string `json:"reference"`
	MaxItems  int    `json:"max_items,omitempty"`
}

// Submission is the accepted form of a Request. ID is the unit to poll: the video id
// for a single item, the batch key for a collection.
type Submission struct {
	Kind     Kind   `json:"kind"`
	ID       string `json:"id"`
	BatchKey string `json:"batch_key,omitempty"`
	Items    int    `json:"items"`
	// Existing is set when the collection was already submitted and nothing was enqueued.
	Existing bool `json:"existing,omitempty"`
}

// Router turns submissions into work messages.
type Router struct {
	Store    units.Store
	Resolver Resolver
	Queue    queue.Publisher
	Logger   *slog.Logger
}

func (r *Router) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Submit classifies req and enqueues its work. Errors wrapping ErrInvalidReference or
// ErrEmptyCollection are the caller's fault; anything else is infrastructure.
func (r *Router) Submit(ctx context.Context, req Request) (Submission, error) {
	ref, err := r.Resolver.Classify(req.Reference)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	if !ref.Kind.Collection() {
		if err := queue.PublishJSON(ctx, r.Queue, queue.TopicWork, WorkMessage{ItemID: ref.ItemID, URL: ref.URL}); err != nil {
			return Submission{}, fmt.Errorf("enqueue %s: %w", ref.ItemID, err)
		}
		metrics.Submissions.WithLabelValues(string(ref.Kind)).Inc()
		r.log().Info("submitted item", "item_id", ref.ItemID, "url", ref.URL)
		return Submission{Kind: ref.Kind, ID: ref.ItemID, Items: 1}, nil
	}

	items, err := r.Resolver.Resolve(ctx, ref, req.MaxItems)
	if err != nil {
		return Submission{}, fmt.Errorf("resolve %s: %w", ref.URL, err)
	}
	items = distinct(items)
	if req.MaxItems > 0 && len(items) > req.MaxItems {
		items = items[:req.MaxItems]
	}
	if len(items) == 0 {
		return Submission{}, ErrEmptyCollection
	}

	sub := Submission{Kind: ref.Kind, ID: ref.BatchKey, BatchKey: ref.BatchKey, Items: len(items)}
	created, err := r.Store.CreateIfAbsent(ctx, units.NewBatch(ref.BatchKey, int64(len(items))))
	if err != nil {
		return Submission{}, fmt.Errorf("create batch %s: %w", ref.BatchKey, err)
	}
	if !created {
		r.log().Info("collection already submitted", "batch_key", ref.BatchKey, "url", ref.URL)
		sub.Existing = true
		return sub, nil
	}

	for i, item := range items {
		msg := WorkMessage{ItemID: item.ID, URL: item.URL, BatchKey: ref.BatchKey}
		if err := queue.PublishJSON(ctx, r.Queue, queue.TopicWork, msg); err != nil {
			r.log().Error("partial enqueue; batch will not converge",
				"batch_key", ref.BatchKey,
				"enqueued", i,
				"items", len(items),
				"error", err)
			return sub, fmt.Errorf("enqueue %s for batch %s (%d of %d enqueued): %w", item.ID, ref.BatchKey, i, len(items), err)
		}
	}

	metrics.Submissions.WithLabelValues(string(ref.Kind)).Inc()
	r.log().Info("submitted collection", "batch_key", ref.BatchKey, "kind", ref.Kind, "items", len(items))
	return sub, nil
}

// IsRejection reports whether err from Submit should be shown to the caller as a rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidReference) || errors.Is(err, ErrEmptyCollection)
}

// distinct drops repeated item ids: each member may decrement its batch only once, so
// a repeated id would leave remaining permanently above zero.
func distinct(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
