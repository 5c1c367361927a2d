package scheduler

import (
	"context"
	"log/slog"
	"time"

	"gardener/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.CycleStats, error)
}

type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A non-positive interval means a single
// cycle.
func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Start runs cycles until ctx is cancelled. In single-run mode the cycle
// error is returned; in periodic mode it is logged and the next cycle still
// runs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		_, err := s.syncer.Sync(ctx)
		return err
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler stopped")
			return err
		}

		// time.Now carries a monotonic reading, so wall clock jumps do not
		// shift the next wake.
		next := time.Now().Add(s.interval)
		s.runSync(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	if _, err := s.syncer.Sync(ctx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}
