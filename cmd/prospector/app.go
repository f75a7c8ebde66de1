package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/prospector/internal/config"
	"github.com/hyperengineering/prospector/internal/events"
	"github.com/hyperengineering/prospector/internal/focus"
	"github.com/hyperengineering/prospector/internal/lock"
	"github.com/hyperengineering/prospector/internal/report"
	"github.com/hyperengineering/prospector/internal/scoring"
	"github.com/hyperengineering/prospector/internal/signals"
	"github.com/hyperengineering/prospector/internal/store"
	"github.com/hyperengineering/prospector/internal/worker"
)

// app holds the wired services shared by the server and the one-shot commands.
type app struct {
	store      *store.SQLStore
	scoring    *scoring.Service
	focus      *focus.Service
	sweeper    *worker.Sweeper
	archiver   report.Archiver
	classifier signals.Classifier
	closers    []func() error
}

// newApp opens the store and connects the optional backends. Anything left
// unconfigured falls back to its in-process or no-op implementation.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	dsn := cfg.Database.Path
	if cfg.Database.Driver == string(store.DialectPostgres) {
		dsn = cfg.Database.URL
	}
	db, err := store.Open(ctx, store.Dialect(cfg.Database.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = db
	slog.Info("store initialized", "driver", cfg.Database.Driver)

	locker, err := a.newLocker(ctx, cfg.Lock)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.newPublisher(cfg.Events)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.archiver, err = report.NewArchiver(cfg.Reports)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Reports.Bucket != "" {
		slog.Info("report archive enabled", "bucket", cfg.Reports.Bucket)
	}

	if cfg.Signals.APIKey != "" {
		a.classifier = signals.NewOpenAI(cfg.Signals.APIKey, cfg.Signals.Model)
		slog.Info("signal classifier initialized", "model", cfg.Signals.Model)
	}

	a.scoring = scoring.NewService(db, locker, publisher)
	a.focus = focus.NewService(db, publisher, focus.Options{
		Limit:                      cfg.Focus.Limit,
		ExcludeContactedWithinDays: cfg.Focus.ExcludeContactedWithinDays,
	})
	a.sweeper = worker.NewSweeper(db, a.scoring, a.focus, a.archiver, cfg.Worker.SweepConcurrency)
	return a, nil
}

func (a *app) newLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewMemoryLocker(), nil
	}
	client, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	slog.Info("redis locker initialized")
	return lock.NewRedisLocker(client,
		lock.WithTTL(time.Duration(cfg.TTL)),
		lock.WithWait(time.Duration(cfg.Wait)),
	), nil
}

func (a *app) newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, nil
	}
	p, err := events.DialAMQP(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	slog.Info("event publisher initialized", "exchange", cfg.Exchange)
	return p, nil
}

// Close releases backends in reverse order, then the store.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("backend close error", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("store close error", "error", err)
		}
	}
}
