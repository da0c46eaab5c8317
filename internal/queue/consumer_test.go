package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsumerAcksAndRetries(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, body := range []string{`"a"`, `"b"`, `"c"`} {
		require.NoError(t, q.Publish(ctx, TopicWork, []byte(body)))
	}

	var (
		mu    sync.Mutex
		seen  = map[string]int{}
		errOn = `"b"`
	)
	c := &Consumer{
		Queue:        q,
		Topic:        TopicWork,
		Workers:      3,
		PollInterval: 10 * time.Millisecond,
		Visibility:   time.Minute,
		Handler: func(ctx context.Context, m Message) error {
			mu.Lock()
			defer mu.Unlock()
			seen[string(m.Body)]++
			if string(m.Body) == errOn && seen[errOn] == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len(TopicWork) == 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, seen[`"a"`])
	require.Equal(t, 2, seen[`"b"`])
	require.Equal(t, 1, seen[`"c"`])
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		Queue:   NewMemory(),
		Topic:   TopicSegments,
		Handler: func(context.Context, Message) error { return nil },
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
