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

// Processor consumes work messages: it acquires and segments an item, seeds the video
// unit with its segment count, and announces each segment.
type Processor struct {
	Store    units.Store
	Acquirer Acquirer
	Queue    queue.Publisher
	Batches  *BatchAggregator
	Logger   *slog.Logger
}

func (p *Processor) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// HandleMessage adapts Handle to queue.Handler.
func (p *Processor) HandleMessage(ctx context.Context, m queue.Message) error {
	var msg WorkMessage
	if err := m.Decode(&msg); err != nil {
		p.log().Error("dropping malformed work message", "message_id", m.ID, "error", err)
		return nil
	}
	return p.Handle(ctx, msg)
}

// Handle processes one delivery of msg. A returned error means the message should be
// redelivered; processing failures are recorded on the unit and return nil.
func (p *Processor) Handle(ctx context.Context, msg WorkMessage) error {
	if msg.ItemID == "" {
		p.log().Error("dropping work message without item id", "url", msg.URL)
		return nil
	}
	log := p.log().With("item_id", msg.ItemID, "batch_key", msg.BatchKey)

	// A redelivered message for a finished unit only needs its batch step repeated.
	cur, err := p.Store.Get(ctx, msg.ItemID)
	switch {
	case err == nil && cur.Status.Terminal():
		log.Info("unit already finalized; skipping acquisition", "status", cur.Status)
		metrics.DuplicateDeliveries.WithLabelValues("work").Inc()
		p.Batches.settle(ctx, cur.ID, cur.Status, msg.BatchKey, cur.BatchKey)
		return nil
	case err != nil && !errors.Is(err, units.ErrNotFound):
		return fmt.Errorf("get unit %s: %w", msg.ItemID, err)
	}

	acq, err := p.Acquirer.Acquire(ctx, Item{ID: msg.ItemID, URL: msg.URL})
	if err != nil {
		if IsTransient(err) || ctx.Err() != nil {
			return err
		}
		return p.fail(ctx, msg, &ProcessingError{Stage: "acquire", ID: msg.ItemID, Err: err})
	}
	n := len(acq.Segments)
	if n == 0 {
		return p.fail(ctx, msg, &ProcessingError{Stage: "segment", ID: msg.ItemID, Err: errors.New("no segments produced")})
	}

	created, err := p.Store.CreateIfAbsent(ctx, units.NewVideo(msg.ItemID, int64(n), msg.BatchKey))
	if err != nil {
		return fmt.Errorf("create unit %s: %w", msg.ItemID, err)
	}
	if !created {
		_, err := p.Store.ConditionalUpdate(ctx, msg.ItemID,
			units.Mutation{Status: units.StatusInProgress, SegmentCount: units.Int64(int64(n))},
			units.Condition{StatusNotIn: []units.Status{units.StatusFailed, units.StatusCompleted}},
		)
		if errors.Is(err, units.ErrConditionFailed) {
			// Finalized by another delivery while we were acquiring.
			cur, err := p.Store.Get(ctx, msg.ItemID)
			if err != nil {
				return fmt.Errorf("get unit %s: %w", msg.ItemID, err)
			}
			log.Info("unit finalized concurrently; not announcing segments", "status", cur.Status)
			p.Batches.settle(ctx, cur.ID, cur.Status, msg.BatchKey, cur.BatchKey)
			return nil
		}
		if err != nil {
			return fmt.Errorf("restart unit %s: %w", msg.ItemID, err)
		}
	}

	for i, key := range acq.Segments {
		seg := SegmentMessage{
			ItemID:       msg.ItemID,
			SegmentIndex: i,
			SegmentCount: n,
			ArtifactKey:  key,
			OffsetMs:     int64(i) * acq.SegmentDuration.Milliseconds(),
			BatchKey:     msg.BatchKey,
			SourceURL:    msg.URL,
			Metadata:     acq.Metadata,
		}
		if err := queue.PublishJSON(ctx, p.Queue, queue.TopicSegments, seg); err != nil {
			return fmt.Errorf("announce segment %d of %s: %w", i, msg.ItemID, err)
		}
	}

	log.Info("item segmented", "segments", n, "created", created, "title", acq.Metadata.Title)
	return nil
}

// fail records cause on the unit and settles its batch. A unit that already reached
// a terminal status keeps it.
func (p *Processor) fail(ctx context.Context, msg WorkMessage, cause error) error {
	p.log().Error("item processing failed", "item_id", msg.ItemID, "batch_key", msg.BatchKey, "error", cause)
	status, err := failUnit(ctx, p.Store, msg.ItemID, msg.BatchKey, cause)
	if err != nil {
		return err
	}
	p.Batches.settle(ctx, msg.ItemID, status, msg.BatchKey)
	return nil
}

// failUnit writes FAILED for id, creating the unit if no start ever recorded it. It returns
// the unit's terminal status afterwards, which is COMPLETED if the unit already completed.
func failUnit(ctx context.Context, store units.Store, id, batchKey string, cause error) (units.Status, error) {
	reason := cause.Error()

	created, err := store.CreateIfAbsent(ctx, units.Unit{
		ID:        id,
		Status:    units.StatusFailed,
		BatchKey:  batchKey,
		LastError: reason,
	})
	if err != nil {
		return "", fmt.Errorf("fail unit %s: %w", id, err)
	}
	if created {
		metrics.UnitsFinalized.WithLabelValues("video", string(units.StatusFailed)).Inc()
		return units.StatusFailed, nil
	}

	_, err = store.ConditionalUpdate(ctx, id,
		units.Mutation{Status: units.StatusFailed, LastError: &reason},
		units.Condition{},
	)
	if err == nil {
		metrics.UnitsFinalized.WithLabelValues("video", string(units.StatusFailed)).Inc()
		return units.StatusFailed, nil
	}
	if !errors.Is(err, units.ErrConditionFailed) {
		return "", fmt.Errorf("fail unit %s: %w", id, err)
	}

	cur, err := store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get unit %s: %w", id, err)
	}
	return cur.Status, nil
}
