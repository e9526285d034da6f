// Package maintenance runs the background jobs that keep stores tidy.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is anything that can purge its expired entries and report how
// many it removed.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically purges expired verification sessions. Sessions carry
// their own expiry, so the sweep is pure housekeeping: a missed or failed
// run never admits a stale session.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a sweeper running at the given interval.
func NewSweeper(target Sweepable, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until the context is cancelled. It always
// returns ctx.Err(), so it slots directly into an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.target.SweepExpired(ctx); err != nil {
				// Keep running; the next tick retries.
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
