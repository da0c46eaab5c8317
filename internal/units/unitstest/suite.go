// Package unitstest is a behavioural test suite shared by every units.Store backend.
package unitstest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/units"
)

// Run exercises store semantics against the store returned by newStore.
// Ids are randomized so the suite can share one database or redis instance.
func Run(t *testing.T, newStore func(t *testing.T) units.Store) {
	t.Run("CreateIfAbsentRoundTrip", func(t *testing.T) { testCreateRoundTrip(t, newStore(t)) })
	t.Run("CreateIfAbsentRejectsInvalid", func(t *testing.T) { testCreateInvalid(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("ConditionalUpdate", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("DuplicateStartNeverDowngrades", func(t *testing.T) { testDuplicateStart(t, newStore(t)) })
	t.Run("TerminalIsFinal", func(t *testing.T) { testTerminalIsFinal(t, newStore(t)) })
	t.Run("Increment", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("IncrementDedupe", func(t *testing.T) { testIncrementDedupe(t, newStore(t)) })
	t.Run("IncrementFloor", func(t *testing.T) { testIncrementFloor(t, newStore(t)) })
	t.Run("IncrementSegmentCeiling", func(t *testing.T) { testIncrementCeiling(t, newStore(t)) })
	t.Run("ConcurrentSegmentsFinalizeOnce", func(t *testing.T) { testConcurrentFinalize(t, newStore(t)) })
	t.Run("ConcurrentBatchDecrements", func(t *testing.T) { testConcurrentBatch(t, newStore(t)) })
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func testCreateRoundTrip(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	created, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 3, "batch-1"))
	require.NoError(t, err)
	require.True(t, created)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, units.StatusInProgress, got.Status)
	require.Equal(t, units.Int64(3), got.SegmentCount)
	require.Equal(t, int64(0), got.SegmentsProcessed)
	require.Nil(t, got.Remaining)
	require.Equal(t, "batch-1", got.BatchKey)
	require.False(t, got.IsBatch())

	other := units.NewBatch(id, 7)
	other.Status = units.StatusFailed
	created, err = s.CreateIfAbsent(ctx, other)
	require.NoError(t, err)
	require.False(t, created)

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, got.Status, again.Status)
	require.Equal(t, got.SegmentCount, again.SegmentCount)
	require.Nil(t, again.Remaining)
	require.Equal(t, "batch-1", again.BatchKey)
}

func testCreateInvalid(t *testing.T, s units.Store) {
	ctx := context.Background()

	_, err := s.CreateIfAbsent(ctx, units.Unit{Status: units.StatusInProgress})
	require.Error(t, err)

	_, err = s.CreateIfAbsent(ctx, units.Unit{ID: newID("bad"), Status: "STARTED"})
	require.Error(t, err)
}

func testGetMissing(t *testing.T, s units.Store) {
	_, err := s.Get(context.Background(), newID("missing"))
	require.ErrorIs(t, err, units.ErrNotFound)
}

func testConditionalUpdate(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, err := s.ConditionalUpdate(ctx, id, units.Mutation{Status: units.StatusCompleted}, units.Condition{})
	require.ErrorIs(t, err, units.ErrNotFound)

	_, err = s.CreateIfAbsent(ctx, units.NewVideo(id, 2, ""))
	require.NoError(t, err)

	// Predicate fails: nothing changes, including fields unrelated to status.
	_, err = s.ConditionalUpdate(ctx, id,
		units.Mutation{Status: units.StatusCompleted, LastError: units.String("nope")},
		units.Condition{StatusIn: []units.Status{units.StatusFailed}})
	require.ErrorIs(t, err, units.ErrConditionFailed)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.StatusInProgress, got.Status)
	require.Empty(t, got.LastError)

	updated, err := s.ConditionalUpdate(ctx, id,
		units.Mutation{SegmentCount: units.Int64(5), LastError: units.String("retrying")},
		units.Condition{StatusNotIn: []units.Status{units.StatusFailed}})
	require.NoError(t, err)
	require.Equal(t, units.Int64(5), updated.SegmentCount)
	require.Equal(t, "retrying", updated.LastError)
	require.Equal(t, units.StatusInProgress, updated.Status)
}

func testDuplicateStart(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 1, ""))
	require.NoError(t, err)
	_, err = s.ConditionalUpdate(ctx, id, units.Mutation{Status: units.StatusFailed}, units.Condition{})
	require.NoError(t, err)

	for range 3 {
		// A late start message, with and without its own predicate.
		_, err = s.ConditionalUpdate(ctx, id,
			units.Mutation{Status: units.StatusInProgress, SegmentCount: units.Int64(4)},
			units.Condition{StatusNotIn: []units.Status{units.StatusFailed}})
		require.ErrorIs(t, err, units.ErrConditionFailed)

		_, err = s.ConditionalUpdate(ctx, id, units.Mutation{Status: units.StatusInProgress}, units.Condition{})
		require.ErrorIs(t, err, units.ErrConditionFailed)

		created, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 4, ""))
		require.NoError(t, err)
		require.False(t, created)
	}

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.StatusFailed, got.Status)
	require.Equal(t, units.Int64(1), got.SegmentCount)
}

func testTerminalIsFinal(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 1, ""))
	require.NoError(t, err)
	_, err = s.ConditionalUpdate(ctx, id, units.Mutation{Status: units.StatusCompleted}, units.Condition{})
	require.NoError(t, err)

	_, err = s.ConditionalUpdate(ctx, id, units.Mutation{Status: units.StatusFailed}, units.Condition{})
	require.ErrorIs(t, err, units.ErrConditionFailed)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, got.Status)

	// Diagnostics without a status change still apply to terminal units.
	got, err = s.ConditionalUpdate(ctx, id, units.Mutation{LastError: units.String("late note")}, units.Condition{})
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, got.Status)
	require.Equal(t, "late note", got.LastError)
}

func testIncrement(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, _, err := s.Increment(ctx, id, units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1})
	require.ErrorIs(t, err, units.ErrNotFound)

	_, err = s.CreateIfAbsent(ctx, units.NewVideo(id, 10, ""))
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		v, applied, err := s.Increment(ctx, id, units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1})
		require.NoError(t, err)
		require.True(t, applied)
		require.Equal(t, want, v)
	}

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.SegmentsProcessed)
}

func testIncrementDedupe(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 3, ""))
	require.NoError(t, err)

	inc := units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1, DedupeKey: "segment:1"}
	v, applied, err := s.Increment(ctx, id, inc)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(1), v)

	v, applied, err = s.Increment(ctx, id, inc)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(1), v)

	// The same key on another field of another unit is independent.
	other := newID("batch")
	_, err = s.CreateIfAbsent(ctx, units.NewBatch(other, 2))
	require.NoError(t, err)
	v, applied, err = s.Increment(ctx, other, units.Increment{Field: units.FieldRemaining, Delta: -1, DedupeKey: "segment:1"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(1), v)
}

func testIncrementFloor(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("batch")

	_, err := s.CreateIfAbsent(ctx, units.NewBatch(id, 1))
	require.NoError(t, err)

	floor := units.Int64(0)
	v, applied, err := s.Increment(ctx, id, units.Increment{Field: units.FieldRemaining, Delta: -1, Floor: floor})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(0), v)

	v, _, err = s.Increment(ctx, id, units.Increment{Field: units.FieldRemaining, Delta: -1, Floor: floor})
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.Int64(0), got.Remaining)
	require.True(t, got.IsBatch())
}

func testIncrementCeiling(t *testing.T, s units.Store) {
	ctx := context.Background()
	id := newID("video")

	_, err := s.CreateIfAbsent(ctx, units.NewVideo(id, 1, ""))
	require.NoError(t, err)

	v, applied, err := s.Increment(ctx, id, units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1, DedupeKey: "segment:0"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(1), v)

	v, applied, err = s.Increment(ctx, id, units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1, DedupeKey: "segment:7"})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(1), v)

	// A rejected increment does not burn its dedupe key.
	_, err = s.ConditionalUpdate(ctx, id, units.Mutation{SegmentCount: units.Int64(2)}, units.Condition{})
	require.NoError(t, err)
	v, applied, err = s.Increment(ctx, id, units.Increment{Field: units.FieldSegmentsProcessed, Delta: 1, DedupeKey: "segment:7"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(2), v)
}

func testConcurrentFinalize(t *testing.T, s units.Store) {
	ctx := context.Background()
	const n = 16
	id := newID("video")

	_, err := s.CreateIfAbsent(ctx, units.NewVideo(id, n, ""))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		observed  atomic.Int32
		finalized atomic.Int32
	)
	// Every segment is delivered twice.
	for i := range n * 2 {
		wg.Add(1)
		go func(seg int) {
			defer wg.Done()
			v, applied, err := s.Increment(ctx, id, units.Increment{
				Field:     units.FieldSegmentsProcessed,
				Delta:     1,
				DedupeKey: fmt.Sprintf("segment:%d", seg%n),
			})
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if !applied || v != n {
				return
			}
			observed.Add(1)
			_, err = s.ConditionalUpdate(ctx, id,
				units.Mutation{Status: units.StatusCompleted},
				units.Condition{StatusIn: []units.Status{units.StatusInProgress}})
			if err == nil {
				finalized.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), observed.Load())
	require.Equal(t, int32(1), finalized.Load())

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, got.Status)
	require.Equal(t, int64(n), got.SegmentsProcessed)
}

func testConcurrentBatch(t *testing.T, s units.Store) {
	ctx := context.Background()
	const k = 12
	id := newID("batch")

	_, err := s.CreateIfAbsent(ctx, units.NewBatch(id, k))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		reachedZ atomic.Int32
	)
	for i := range k * 3 {
		wg.Add(1)
		go func(member int) {
			defer wg.Done()
			v, applied, err := s.Increment(ctx, id, units.Increment{
				Field:     units.FieldRemaining,
				Delta:     -1,
				Floor:     units.Int64(0),
				DedupeKey: fmt.Sprintf("member:%d", member%k),
			})
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if v < 0 {
				t.Errorf("remaining went negative: %d", v)
			}
			if applied && v == 0 {
				reachedZ.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), reachedZ.Load())
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, units.Int64(0), got.Remaining)
}
