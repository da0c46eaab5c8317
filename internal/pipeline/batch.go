package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thirdcoast.systems/scribe/internal/metrics"
	"thirdcoast.systems/scribe/internal/units"
)

// BatchAggregator folds a finalized member into its batch.
//
// Every step is a single-key atomic call keyed by the member id, so the protocol can be
// re-run after redelivery or a crash without decrementing the batch twice.
type BatchAggregator struct {
	Store  units.Store
	Logger *slog.Logger
}

func (b *BatchAggregator) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// MemberFinalized accounts for memberID reaching status in batchKey. It reports whether
// this call moved the batch to COMPLETED.
func (b *BatchAggregator) MemberFinalized(ctx context.Context, batchKey, memberID string, status units.Status) (bool, error) {
	if batchKey == "" {
		return false, nil
	}
	if !status.Terminal() {
		return false, fmt.Errorf("batch %s: member %s is not terminal (%s)", batchKey, memberID, status)
	}
	log := b.log().With("batch_key", batchKey, "member_id", memberID)

	if status == units.StatusFailed {
		if _, _, err := b.Store.Increment(ctx, batchKey, units.Increment{
			Field:     units.FieldFailedMembers,
			Delta:     1,
			DedupeKey: "failed:" + memberID,
		}); err != nil {
			return false, fmt.Errorf("batch %s: count failed member %s: %w", batchKey, memberID, err)
		}
	}

	remaining, applied, err := b.Store.Increment(ctx, batchKey, units.Increment{
		Field:     units.FieldRemaining,
		Delta:     -1,
		Floor:     units.Int64(0),
		DedupeKey: "member:" + memberID,
	})
	if err != nil {
		return false, fmt.Errorf("batch %s: decrement for %s: %w", batchKey, memberID, err)
	}
	if !applied {
		metrics.DuplicateDeliveries.WithLabelValues("batch").Inc()
		log.Debug("member already counted", "remaining", remaining)
	}
	if remaining > 0 {
		return false, nil
	}

	u, err := b.Store.ConditionalUpdate(ctx, batchKey,
		units.Mutation{Status: units.StatusCompleted},
		units.Condition{StatusIn: []units.Status{units.StatusInProgress}},
	)
	if errors.Is(err, units.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("batch %s: finalize: %w", batchKey, err)
	}

	metrics.UnitsFinalized.WithLabelValues("batch", string(units.StatusCompleted)).Inc()
	log.Info("batch completed", "failed_members", u.FailedMembers)
	return true, nil
}

// settle runs MemberFinalized for every distinct batch key and swallows the errors:
// the member's own status is already committed, so there is nothing to roll back.
func (b *BatchAggregator) settle(ctx context.Context, memberID string, status units.Status, batchKeys ...string) {
	seen := map[string]bool{}
	for _, key := range batchKeys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, err := b.MemberFinalized(ctx, key, memberID, status); err != nil {
			metrics.CoordinationErrors.WithLabelValues("batch_decrement").Inc()
			b.log().Error("batch decrement failed; batch needs reconciliation",
				"batch_key", key,
				"member_id", memberID,
				"status", status,
				"error", err)
		}
	}
}
