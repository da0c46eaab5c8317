package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryVisibility(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	q := NewMemory()
	q.now = func() time.Time { return now }

	require.NoError(t, q.Publish(ctx, TopicWork, []byte(`{"n":1}`)))

	msgs, err := q.Receive(ctx, TopicWork, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 1, msgs[0].Attempts)

	// Invisible while held.
	again, err := q.Receive(ctx, TopicWork, 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, again)

	// Redelivered after the window; the old receipt is stale.
	now = now.Add(2 * time.Minute)
	again, err = q.Receive(ctx, TopicWork, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, 2, again[0].Attempts)
	require.ErrorIs(t, q.Ack(ctx, msgs[0]), ErrReceiptExpired)

	require.NoError(t, q.Ack(ctx, again[0]))
	require.Equal(t, 0, q.Len(TopicWork))
}

func TestMemoryRelease(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	q := NewMemory()
	q.now = func() time.Time { return now }

	require.NoError(t, q.Publish(ctx, TopicSegments, []byte(`{}`)))
	msgs, err := q.Receive(ctx, TopicSegments, 1, time.Hour)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, q.Release(ctx, msgs[0], 30*time.Second, nil))

	got, err := q.Receive(ctx, TopicSegments, 1, time.Hour)
	require.NoError(t, err)
	require.Empty(t, got)

	now = now.Add(31 * time.Second)
	got, err = q.Receive(ctx, TopicSegments, 1, time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestPublishJSONAndDecode(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	type payload struct {
		ItemID string `json:"item_id"`
	}
	require.NoError(t, PublishJSON(ctx, q, TopicWork, payload{ItemID: "abc"}))

	msgs, err := q.Drain(ctx, TopicWork)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got payload
	require.NoError(t, msgs[0].Decode(&got))
	require.Equal(t, "abc", got.ItemID)

	require.Error(t, Message{Body: []byte("nope")}.Decode(&got))
}

func TestMemoryWakeIsPerTopic(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()
	work := q.Wake(TopicWork)
	segments := q.Wake(TopicSegments)

	require.NoError(t, q.Publish(ctx, TopicSegments, []byte(`{}`)))

	select {
	case <-work:
		t.Fatal("work consumer woken by a segments publish")
	default:
	}
	select {
	case <-segments:
	default:
		t.Fatal("segments consumer not woken")
	}
}
