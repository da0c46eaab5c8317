// Package queue is the at-least-once message transport between scribe stages.
//
// A received message stays invisible to other consumers for its visibility window.
// Ack deletes it; Release makes it visible again after a delay. A message that is
// neither acked nor released reappears once the window expires.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TopicWork     = "work"
	TopicSegments = "segments"
)

// ErrReceiptExpired is returned by Ack and Release when the message was redelivered
// to someone else after our visibility window ran out.
var ErrReceiptExpired = errors.New("queue: receipt expired")

type Message struct {
	ID       string
	Topic    string
	Body     []byte
	Attempts int
	Receipt  string
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s message %s: %w", m.Topic, m.ID, err)
	}
	return nil
}

type Queue interface {
	Publisher
	Receive(ctx context.Context, topic string, max int, visibility time.Duration) ([]Message, error)
	Ack(ctx context.Context, m Message) error
	Release(ctx context.Context, m Message, delay time.Duration, cause error) error
}

// Waker is implemented by queues that can signal new messages without polling.
// Each topic gets its own channel so a publish on one topic never consumes the
// signal meant for another.
type Waker interface {
	Wake(topic string) <-chan struct{}
}

// Publisher is the send side of a Queue.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// PublishJSON marshals v and publishes it on topic.
func PublishJSON(ctx context.Context, q Publisher, topic string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}
	return q.Publish(ctx, topic, body)
}
