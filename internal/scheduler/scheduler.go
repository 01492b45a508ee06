// Package scheduler runs the periodic expiry sweep of abandoned pending
// reservations.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type staleExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

type Scheduler struct {
	bookings staleExpirer
	interval time.Duration
	logger   *zap.Logger
}

// DefaultInterval replaces a non-positive sweep interval.
const DefaultInterval = time.Minute

func New(bookings staleExpirer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		logger.Warn("non-positive sweep interval; using default",
			zap.Duration("interval", interval),
			zap.Duration("default", DefaultInterval))
		interval = DefaultInterval
	}
	return &Scheduler{bookings: bookings, interval: interval, logger: logger}
}

// Start blocks, sweeping every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.bookings.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("failed to expire stale reservations", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("sweep finished", zap.Int("expired", n))
	}
}
