package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"thirdcoast.systems/scribe/internal/metrics"
)

// Handler processes one message. A nil return acks the message; an error releases it
// for redelivery after the consumer's retry delay.
type Handler func(ctx context.Context, m Message) error

// Consumer runs a pool of workers that drain a topic, then sleep until woken or until
// the poll interval passes.
type Consumer struct {
	Queue        Queue
	Topic        string
	Handler      Handler
	Workers      int
	BatchSize    int
	Visibility   time.Duration
	PollInterval time.Duration
	RetryDelay   time.Duration
	Logger       *slog.Logger
}

func (c *Consumer) defaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.Visibility <= 0 {
		c.Visibility = 15 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.defaults()

	var wake <-chan struct{}
	if w, ok := c.Queue.(Waker); ok {
		wake = w.Wake(c.Topic)
	}

	c.Logger.Info("consumer started", "topic", c.Topic, "workers", c.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Workers; i++ {
		worker := i
		g.Go(func() error {
			c.work(ctx, worker, wake)
			return nil
		})
	}
	err := g.Wait()
	c.Logger.Info("consumer stopped", "topic", c.Topic)
	return err
}

func (c *Consumer) work(ctx context.Context, worker int, wake <-chan struct{}) {
	log := c.Logger.With("topic", c.Topic, "worker", worker)
	for {
		if ctx.Err() != nil {
			return
		}

		// Drain as many messages as we can
		for ctx.Err() == nil {
			msgs, err := c.Queue.Receive(ctx, c.Topic, c.BatchSize, c.Visibility)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("failed to receive messages", "error", err)
				sleep(ctx, 2*time.Second)
				break
			}
			if len(msgs) == 0 {
				break
			}
			for _, m := range msgs {
				c.handle(ctx, log, m)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
			// new message notification
		case <-time.After(c.PollInterval):
			// periodic poll
		}
	}
}

// handle never returns an error: failures are reported to the queue instead.
func (c *Consumer) handle(ctx context.Context, log *slog.Logger, m Message) {
	active := metrics.ActiveHandlers.WithLabelValues(c.Topic)
	active.Inc()
	defer active.Dec()

	start := time.Now()
	err := c.Handler(ctx, m)
	metrics.HandleDuration.WithLabelValues(c.Topic).Observe(time.Since(start).Seconds())

	// Settle with a context that survives shutdown so an in-flight result is not lost.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err == nil {
		if ackErr := c.Queue.Ack(settleCtx, m); ackErr != nil {
			c.settleFailed(log, m, "ack", ackErr)
			return
		}
		metrics.MessagesHandled.WithLabelValues(c.Topic, "ack").Inc()
		return
	}

	log.Warn("message handling failed; releasing for redelivery",
		"message_id", m.ID,
		"attempts", m.Attempts,
		"error", err)
	if relErr := c.Queue.Release(settleCtx, m, c.RetryDelay, err); relErr != nil {
		c.settleFailed(log, m, "release", relErr)
		return
	}
	metrics.MessagesHandled.WithLabelValues(c.Topic, "retry").Inc()
}

func (c *Consumer) settleFailed(log *slog.Logger, m Message, op string, err error) {
	if errors.Is(err, ErrReceiptExpired) {
		log.Warn("message redelivered before settle", "op", op, "message_id", m.ID)
		metrics.MessagesHandled.WithLabelValues(c.Topic, "stale").Inc()
		return
	}
	log.Error("failed to settle message", "op", op, "message_id", m.ID, "error", err)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
