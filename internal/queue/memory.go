package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryMessage struct {
	Message
	visibleAt time.Time
}

// Memory is an in-process Queue with the same visibility semantics as the durable backends.
type Memory struct {
	mu     sync.Mutex
	topics map[string][]*memoryMessage
	wake   map[string]chan struct{}
	now    func() time.Time
}

var (
	_ Queue = (*Memory)(nil)
	_ Waker = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		topics: map[string][]*memoryMessage{},
		wake:   map[string]chan struct{}{},
		now:    time.Now,
	}
}

func (q *Memory) Wake(topic string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wakeLocked(topic)
}

func (q *Memory) wakeLocked(topic string) chan struct{} {
	ch, ok := q.wake[topic]
	if !ok {
		ch = make(chan struct{}, 1)
		q.wake[topic] = ch
	}
	return ch
}

func (q *Memory) Publish(ctx context.Context, topic string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	q.topics[topic] = append(q.topics[topic], &memoryMessage{
		Message: Message{
			ID:    uuid.NewString(),
			Topic: topic,
			Body:  append([]byte(nil), body...),
		},
		visibleAt: q.now(),
	})
	wake := q.wakeLocked(topic)
	q.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *Memory) Receive(ctx context.Context, topic string, max int, visibility time.Duration) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Message
	for _, m := range q.topics[topic] {
		if len(out) == max {
			break
		}
		if m.visibleAt.After(now) {
			continue
		}
		m.Attempts++
		m.Receipt = uuid.NewString()
		m.visibleAt = now.Add(visibility)
		out = append(out, m.Message)
	}
	return out, nil
}

func (q *Memory) Ack(ctx context.Context, m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := q.topics[m.Topic]
	for i, held := range msgs {
		if held.ID != m.ID {
			continue
		}
		if held.Receipt != m.Receipt {
			return ErrReceiptExpired
		}
		q.topics[m.Topic] = append(msgs[:i], msgs[i+1:]...)
		return nil
	}
	return ErrReceiptExpired
}

func (q *Memory) Release(ctx context.Context, m Message, delay time.Duration, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, held := range q.topics[m.Topic] {
		if held.ID != m.ID {
			continue
		}
		if held.Receipt != m.Receipt {
			return ErrReceiptExpired
		}
		held.visibleAt = q.now().Add(delay)
		return nil
	}
	return ErrReceiptExpired
}

// Len returns the number of messages on topic that have not been acked.
func (q *Memory) Len(topic string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.topics[topic])
}

// Drain receives and acks every visible message on topic in publish order.
func (q *Memory) Drain(ctx context.Context, topic string) ([]Message, error) {
	msgs, err := q.Receive(ctx, topic, q.Len(topic), time.Minute)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if err := q.Ack(ctx, m); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
