package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/scribe/internal/units"
)

func TestMemberFinalizedMixedOutcomesCompletesBatch(t *testing.T) {
	store := units.NewMemoryStore()
	b := &BatchAggregator{Store: store}
	ctx := context.Background()

	_, err := store.CreateIfAbsent(ctx, units.NewBatch("B", 3))
	require.NoError(t, err)

	steps := []struct {
		member string
		status units.Status
		done   bool
	}{
		{"a", units.StatusCompleted, false},
		{"b", units.StatusFailed, false},
		{"c", units.StatusCompleted, true},
	}
	for _, s := range steps {
		done, err := b.MemberFinalized(ctx, "B", s.member, s.status)
		require.NoError(t, err)
		require.Equal(t, s.done, done, s.member)
	}

	u, err := store.Get(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, u.Status)
	require.EqualValues(t, 0, *u.Remaining)
	require.EqualValues(t, 1, u.FailedMembers)
}

func TestMemberFinalizedIsIdempotent(t *testing.T) {
	store := units.NewMemoryStore()
	b := &BatchAggregator{Store: store}
	ctx := context.Background()

	_, err := store.CreateIfAbsent(ctx, units.NewBatch("B", 2))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		done, err := b.MemberFinalized(ctx, "B", "a", units.StatusFailed)
		require.NoError(t, err)
		require.False(t, done)
	}

	u, err := store.Get(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, units.StatusInProgress, u.Status)
	require.EqualValues(t, 1, *u.Remaining)
	require.EqualValues(t, 1, u.FailedMembers)

	done, err := b.MemberFinalized(ctx, "B", "b", units.StatusCompleted)
	require.NoError(t, err)
	require.True(t, done)

	done, err = b.MemberFinalized(ctx, "B", "b", units.StatusCompleted)
	require.NoError(t, err)
	require.False(t, done)
}

func TestMemberFinalizedRejectsNonTerminal(t *testing.T) {
	b := &BatchAggregator{Store: units.NewMemoryStore()}
	_, err := b.MemberFinalized(context.Background(), "B", "a", units.StatusInProgress)
	require.Error(t, err)

	done, err := b.MemberFinalized(context.Background(), "", "a", units.StatusCompleted)
	require.NoError(t, err)
	require.False(t, done)
}

func TestMemberFinalizedConcurrent(t *testing.T) {
	const k = 20
	store := units.NewMemoryStore()
	b := &BatchAggregator{Store: store}
	ctx := context.Background()

	_, err := store.CreateIfAbsent(ctx, units.NewBatch("B", k))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		finished atomic.Int32
	)
	// Each member reports three times, concurrently with everyone else.
	for i := 0; i < k; i++ {
		for dup := 0; dup < 3; dup++ {
			wg.Add(1)
			go func(member string, status units.Status) {
				defer wg.Done()
				done, err := b.MemberFinalized(ctx, "B", member, status)
				require.NoError(t, err)
				if done {
					finished.Add(1)
				}
			}(fmt.Sprintf("m%d", i), []units.Status{units.StatusCompleted, units.StatusFailed}[i%2])
		}
	}
	wg.Wait()

	require.EqualValues(t, 1, finished.Load())
	u, err := store.Get(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, u.Status)
	require.EqualValues(t, 0, *u.Remaining)
	require.EqualValues(t, k/2, u.FailedMembers)
}

func TestBatchNeverCompletesEarly(t *testing.T) {
	const k = 5
	store := units.NewMemoryStore()
	b := &BatchAggregator{Store: store}
	ctx := context.Background()

	_, err := store.CreateIfAbsent(ctx, units.NewBatch("B", k))
	require.NoError(t, err)

	for i := 0; i < k; i++ {
		u, err := store.Get(ctx, "B")
		require.NoError(t, err)
		require.Equal(t, units.StatusInProgress, u.Status, "after %d members", i)

		_, err = b.MemberFinalized(ctx, "B", fmt.Sprintf("m%d", i), units.StatusCompleted)
		require.NoError(t, err)
	}

	u, err := store.Get(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, units.StatusCompleted, u.Status)
}
