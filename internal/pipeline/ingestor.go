package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"thirdcoast.systems/scribe/internal/metrics"
	"thirdcoast.systems/scribe/internal/queue"
	"thirdcoast.systems/scribe/internal/units"
)

// Ingestor consumes segment messages: it transcribes the segment, stores the result and
// credits the video, finalizing it when the last distinct segment lands.
type Ingestor struct {
	Store       units.Store
	Transcriber Transcriber
	Results     ResultSink
	Batches     *BatchAggregator
	Logger      *slog.Logger
}

func (in *Ingestor) log() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return slog.Default()
}

// HandleMessage adapts Handle to queue.Handler.
func (in *Ingestor) HandleMessage(ctx context.Context, m queue.Message) error {
	var msg SegmentMessage
	if err := m.Decode(&msg); err != nil {
		in.log().Error("dropping malformed segment message", "message_id", m.ID, "error", err)
		return nil
	}
	_, err := in.Handle(ctx, msg)
	return err
}

// Handle processes one delivery of msg and reports whether it moved the video to COMPLETED.
func (in *Ingestor) Handle(ctx context.Context, msg SegmentMessage) (bool, error) {
	if msg.ItemID == "" || msg.SegmentIndex < 0 {
		in.log().Error("dropping invalid segment message", "item_id", msg.ItemID, "segment_index", msg.SegmentIndex)
		return false, nil
	}
	log := in.log().With("item_id", msg.ItemID, "segment_index", msg.SegmentIndex, "batch_key", msg.BatchKey)

	cur, err := in.Store.Get(ctx, msg.ItemID)
	if err != nil {
		// The processor creates the unit before announcing segments, so a missing unit
		// is a store problem worth retrying.
		return false, fmt.Errorf("get unit %s: %w", msg.ItemID, err)
	}
	if cur.Status.Terminal() {
		log.Info("unit already finalized; acknowledging segment", "status", cur.Status)
		metrics.DuplicateDeliveries.WithLabelValues("segment").Inc()
		in.Batches.settle(ctx, cur.ID, cur.Status, msg.BatchKey, cur.BatchKey)
		return false, nil
	}

	transcript, err := in.Transcriber.Transcribe(ctx, msg.ArtifactKey)
	if err != nil {
		if IsTransient(err) || ctx.Err() != nil {
			return false, err
		}
		return false, in.fail(ctx, msg, cur, &ProcessingError{Stage: "transcribe", ID: segmentID(msg), Err: err})
	}

	if err := in.Results.SaveSegment(ctx, SegmentResult{
		VideoID:      msg.ItemID,
		SegmentIndex: msg.SegmentIndex,
		OffsetMs:     msg.OffsetMs,
		SourceURL:    msg.SourceURL,
		Metadata:     msg.Metadata,
		Transcript:   transcript,
	}); err != nil {
		if errors.Is(err, ErrResultRejected) && ctx.Err() == nil {
			return false, in.fail(ctx, msg, cur, &ProcessingError{Stage: "store", ID: segmentID(msg), Err: err})
		}
		return false, Transient(fmt.Errorf("store %s: %w", segmentID(msg), err))
	}

	processed, applied, err := in.Store.Increment(ctx, msg.ItemID, units.Increment{
		Field:     units.FieldSegmentsProcessed,
		Delta:     1,
		DedupeKey: "segment:" + strconv.Itoa(msg.SegmentIndex),
	})
	if err != nil {
		return false, fmt.Errorf("credit segment %s: %w", segmentID(msg), err)
	}
	if applied {
		metrics.SegmentsIngested.Inc()
	} else {
		metrics.DuplicateDeliveries.WithLabelValues("segment").Inc()
	}

	total := msg.SegmentCount
	if cur.SegmentCount != nil {
		total = int(*cur.SegmentCount)
	}
	log.Info("segment ingested", "processed", processed, "segment_count", total, "lines", len(transcript.Lines), "duplicate", !applied)
	if processed < int64(total) {
		return false, nil
	}

	won := true
	u, err := in.Store.ConditionalUpdate(ctx, msg.ItemID,
		units.Mutation{Status: units.StatusCompleted},
		units.Condition{StatusIn: []units.Status{units.StatusInProgress}},
	)
	if errors.Is(err, units.ErrConditionFailed) {
		won = false
		u, err = in.Store.Get(ctx, msg.ItemID)
	}
	if err != nil {
		return false, fmt.Errorf("finalize unit %s: %w", msg.ItemID, err)
	}
	if won {
		metrics.UnitsFinalized.WithLabelValues("video", string(units.StatusCompleted)).Inc()
		log.Info("unit completed", "segments", total)
	}

	// Runs on both paths: the member dedupe key makes a repeat harmless and a crashed
	// winner is repaired by whoever gets here next.
	in.Batches.settle(ctx, u.ID, u.Status, msg.BatchKey, u.BatchKey)
	return won, nil
}

func (in *Ingestor) fail(ctx context.Context, msg SegmentMessage, cur units.Unit, cause error) error {
	in.log().Error("segment processing failed", "item_id", msg.ItemID, "segment_index", msg.SegmentIndex, "error", cause)
	status, err := failUnit(ctx, in.Store, msg.ItemID, msg.BatchKey, cause)
	if err != nil {
		return err
	}
	in.Batches.settle(ctx, msg.ItemID, status, msg.BatchKey, cur.BatchKey)
	return nil
}

func segmentID(msg SegmentMessage) string {
	return fmt.Sprintf("%s#%d", msg.ItemID, msg.SegmentIndex)
}
