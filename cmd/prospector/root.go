package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/prospector/internal/api"
	"github.com/hyperengineering/prospector/internal/config"
	"github.com/hyperengineering/prospector/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "prospector",
	Short:        "Prospector - lead priority scoring and daily focus service",
	SilenceUsage: true,
	RunE:         run,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scoreCmd)
}

// setup loads configuration and installs the default logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg.Log)))
	slog.Info("configuration loaded", "level", cfg.Log.Level, "dev_mode", config.DevMode())
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	return serve(ctx, cancel, cfg, a)
}

// serve runs the HTTP server and enabled coordinators until ctx is done, then
// shuts down in order: server, workers, backends and store.
func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, a *app) error {
	handler := api.NewHandler(api.HandlerConfig{
		Store:      a.store,
		Scorer:     a.scoring,
		Focus:      a.focus,
		Sweeper:    a.sweeper,
		Archiver:   a.archiver,
		Classifier: a.classifier,
		APIKey:     cfg.Auth.APIKey,
		CronSecret: cfg.Auth.CronSecret,
		Version:    Version,
	})
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	if d := time.Duration(cfg.Worker.RescoreInterval); d > 0 {
		startWorker(ctx, &wg, "rescore-coordinator", worker.NewRescoreCoordinator(a.sweeper, d).Run)
	}
	if d := time.Duration(cfg.Worker.FocusInterval); d > 0 {
		startWorker(ctx, &wg, "focus-coordinator", worker.NewFocusCoordinator(a.sweeper, d).Run)
	}

	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Coordinators stop on ctx; the store closes after they return.
	wg.Wait()
	a.Close()

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
