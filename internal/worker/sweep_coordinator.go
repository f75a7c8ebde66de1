package worker

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc runs one sweep to completion.
type SweepFunc func(ctx context.Context) error

// SweepCoordinator runs a sweep on a fixed interval for deployments that
// schedule in-process instead of calling the cron endpoints.
type SweepCoordinator struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
}

// NewSweepCoordinator creates a coordinator that runs sweep every interval.
func NewSweepCoordinator(name string, interval time.Duration, sweep SweepFunc) *SweepCoordinator {
	return &SweepCoordinator{
		name:     name,
		interval: interval,
		sweep:    sweep,
	}
}

// NewRescoreCoordinator schedules Sweeper.RescoreAll.
func NewRescoreCoordinator(s *Sweeper, interval time.Duration) *SweepCoordinator {
	return NewSweepCoordinator("rescore-coordinator", interval, func(ctx context.Context) error {
		_, err := s.RescoreAll(ctx)
		return err
	})
}

// NewFocusCoordinator schedules Sweeper.GenerateDailyFocus.
func NewFocusCoordinator(s *Sweeper, interval time.Duration) *SweepCoordinator {
	return NewSweepCoordinator("focus-coordinator", interval, func(ctx context.Context) error {
		_, err := s.GenerateDailyFocus(ctx)
		return err
	})
}

// Run starts the coordinator loop. It blocks until ctx is cancelled.
// The first sweep runs after one interval, not at startup.
func (c *SweepCoordinator) Run(ctx context.Context) {
	slog.Info("sweep coordinator started",
		"component", "worker",
		"worker", c.name,
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweep coordinator stopped",
				"component", "worker",
				"worker", c.name,
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *SweepCoordinator) runOnce(ctx context.Context) {
	if err := c.sweep(ctx); err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		slog.Error("scheduled sweep failed",
			"component", "worker",
			"worker", c.name,
			"error", err,
		)
	}
}
