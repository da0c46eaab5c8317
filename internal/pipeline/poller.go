package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"thirdcoast.systems/scribe/internal/units"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

// Default poll bounds used when a caller passes zero.
const (
	DefaultPollTimeout  = 30 * time.Minute
	DefaultPollInterval = 10 * time.Second
)

// Poller blocks until a unit reaches a terminal status.
type Poller struct {
	Store  units.Store
	Logger *slog.Logger
}

// Poll reads id immediately and then every interval until the unit is terminal or timeout
// passes. A missing unit counts as not started yet. The last snapshot seen is returned
// with the outcome. Only cancellation of ctx produces an error.
func (p *Poller) Poll(ctx context.Context, id string, timeout, interval time.Duration) (Outcome, units.Unit, error) {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last units.Unit
	for {
		u, err := p.Store.Get(ctx, id)
		switch {
		case err == nil:
			last = u
			switch u.Status {
			case units.StatusCompleted:
				return OutcomeCompleted, u, nil
			case units.StatusFailed:
				return OutcomeFailed, u, nil
			}
		case errors.Is(err, units.ErrNotFound):
		case ctx.Err() != nil:
			return "", last, ctx.Err()
		default:
			log.Warn("poll read failed", "id", id, "error", err)
		}

		select {
		case <-ctx.Done():
			return "", last, ctx.Err()
		case <-deadline.C:
			return OutcomeTimeout, last, nil
		case <-ticker.C:
		}
	}
}
