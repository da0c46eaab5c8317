// Package pgqueue implements queue.Queue on the queue_messages table.
//
// Receive claims rows with FOR UPDATE SKIP LOCKED and hides them until their visibility
// deadline; every claim rotates the receipt handle so a consumer whose window expired
// cannot ack someone else's delivery. Inserts NOTIFY queue_messages to wake idle workers.
package pgqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"thirdcoast.systems/scribe/internal/db"
	"thirdcoast.systems/scribe/internal/metrics"
	"thirdcoast.systems/scribe/internal/queue"
)

type Queue struct {
	dbc *db.DatabaseConnection

	mu   sync.Mutex
	wake map[string]chan struct{}
}

var (
	_ queue.Queue = (*Queue)(nil)
	_ queue.Waker = (*Queue)(nil)
)

func New(dbc *db.DatabaseConnection) *Queue {
	return &Queue{dbc: dbc, wake: map[string]chan struct{}{}}
}

// Listen forwards queue_messages notifications to every topic's Wake channel until
// ctx is done. Notifications carry no topic, so each one wakes all consumers.
func (q *Queue) Listen(ctx context.Context, dsn string) {
	notified := make(chan struct{}, 1)
	go db.ListenAndSignal(ctx, dsn, notified)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-notified:
				q.signal()
			}
		}
	}()
}

func (q *Queue) Wake(topic string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.wake[topic]
	if !ok {
		ch = make(chan struct{}, 1)
		q.wake[topic] = ch
	}
	return ch
}

func (q *Queue) signal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.wake {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (q *Queue) Publish(ctx context.Context, topic string, body []byte) error {
	if _, err := q.dbc.Queries(ctx).EnqueueMessage(ctx, &db.EnqueueMessageParams{Topic: topic, Body: body}); err != nil {
		return fmt.Errorf("enqueue %s message: %w", topic, err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, topic string, max int, visibility time.Duration) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	rows, err := q.dbc.Queries(ctx).DequeueMessages(ctx, &db.DequeueMessagesParams{
		Topic:             topic,
		MaxMessages:       int32(max),
		VisibilitySeconds: visibility.Seconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue %s messages: %w", topic, err)
	}

	out := make([]queue.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, queue.Message{
			ID:       db.UUIDString(r.ID),
			Topic:    r.Topic,
			Body:     r.Body,
			Attempts: int(r.Attempts),
			Receipt:  db.UUIDString(r.ReceiptHandle),
		})
	}
	return out, nil
}

func (q *Queue) Ack(ctx context.Context, m queue.Message) error {
	n, err := q.dbc.Queries(ctx).DeleteMessage(ctx, &db.DeleteMessageParams{
		ID:            db.ParseUUID(m.ID),
		ReceiptHandle: db.ParseUUID(m.Receipt),
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", m.ID, err)
	}
	if n == 0 {
		return queue.ErrReceiptExpired
	}
	return nil
}

func (q *Queue) Release(ctx context.Context, m queue.Message, delay time.Duration, cause error) error {
	var lastErr *string
	if cause != nil {
		msg := cause.Error()
		lastErr = &msg
	}
	n, err := q.dbc.Queries(ctx).ReleaseMessage(ctx, &db.ReleaseMessageParams{
		ID:            db.ParseUUID(m.ID),
		ReceiptHandle: db.ParseUUID(m.Receipt),
		DelaySeconds:  delay.Seconds(),
		LastError:     lastErr,
	})
	if err != nil {
		return fmt.Errorf("release message %s: %w", m.ID, err)
	}
	if n == 0 {
		return queue.ErrReceiptExpired
	}
	return nil
}

// Pending returns the number of live messages on topic.
func (q *Queue) Pending(ctx context.Context, topic string) (int64, error) {
	return q.dbc.Queries(ctx).CountPendingMessages(ctx, topic)
}

// DeadLetter marks messages that reached maxAttempts and are visible again as dead,
// so a poison message stops cycling.
func (q *Queue) DeadLetter(ctx context.Context, maxAttempts int) (int64, error) {
	n, err := q.dbc.Queries(ctx).DeadLetterExhaustedMessages(ctx, int32(maxAttempts))
	if err != nil {
		return 0, fmt.Errorf("dead-letter messages: %w", err)
	}
	if n > 0 {
		metrics.DeadLettered.Add(float64(n))
	}
	return n, nil
}

// Reap runs DeadLetter every interval until ctx is done.
func (q *Queue) Reap(ctx context.Context, maxAttempts int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.DeadLetter(ctx, maxAttempts)
			if err != nil {
				slog.Error("failed to dead-letter exhausted messages", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("dead-lettered exhausted messages", "count", n, "max_attempts", maxAttempts)
			}
		}
	}
}
