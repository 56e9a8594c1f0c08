package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/Arisha-27/KalaSetu/internal/observability"
)

// DialFunc creates one fresh live channel generation, connected and ready to
// deliver events.
type DialFunc func(ctx context.Context) (LiveChannel, error)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Supervisor keeps a session connected across transient network loss. Each
// generation is a fresh channel instance bound to the same participant; after
// every successful attach the history pass is re-run so the merge rule can
// reconcile any messages missed during the outage.
type Supervisor struct {
	session   *Session
	dial      DialFunc
	baseDelay time.Duration
	maxDelay  time.Duration
	log       *slog.Logger
}

// NewSupervisor builds a supervisor with capped exponential backoff. Zero
// delays select the defaults (1s base, 30s cap).
func NewSupervisor(s *Session, dial DialFunc, baseDelay, maxDelay time.Duration) *Supervisor {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	return &Supervisor{
		session:   s,
		dial:      dial,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		log:       observability.WithComponent("supervisor"),
	}
}

// Run blocks, dialing and re-dialing until ctx is canceled or the session is
// closed. The current channel is released on every exit path.
func (sv *Supervisor) Run(ctx context.Context) error {
	delay := sv.baseDelay
	for {
		ch, err := sv.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sv.log.Warn("gateway dial failed", "retry_in", delay, "error", err)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = nextDelay(delay, sv.maxDelay)
			continue
		}
		delay = sv.baseDelay

		if err := sv.session.Attach(ch); err != nil {
			ch.Close()
			return err
		}
		if err := sv.session.LoadHistory(ctx); err != nil {
			sv.log.Warn("history pass degraded", "error", err)
		}

		select {
		case <-ctx.Done():
			ch.Close()
			return ctx.Err()
		case <-ch.Done():
			sv.log.Info("live channel lost, reconnecting", "retry_in", delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, sv.maxDelay)
	}
}

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		d = max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
