package claims

import (
	"context"
	"log/slog"
	"time"

	"clipflow/internal/logging"
)

// Sweeper runs the stale-claim sweep once at startup and then on a fixed
// interval until its context is cancelled.
type Sweeper struct {
	coordinator *Coordinator
	ttl         time.Duration
	interval    time.Duration
	logger      *slog.Logger
}

// NewSweeper builds a sweeper for the coordinator with the given TTL and
// sweep cadence.
func NewSweeper(coordinator *Coordinator, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		coordinator: coordinator,
		ttl:         ttl,
		interval:    interval,
		logger:      logging.NewComponentLogger(logger, "claim-sweeper"),
	}
}

// Run blocks until ctx is cancelled. Sweep failures are logged and the next
// cycle still runs; maintenance must never take the daemon down.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	reclaimed, err := s.coordinator.SweepStale(s.ttl)
	if err != nil {
		s.logger.Error("claim sweep failed", logging.Error(err))
		return
	}
	if reclaimed > 0 {
		s.logger.Info("claim sweep finished", logging.Int("reclaimed", reclaimed))
	}
}
