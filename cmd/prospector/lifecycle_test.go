package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/prospector/internal/config"
	"github.com/hyperengineering/prospector/internal/worker"
)

// logCapture captures slog output for testing
type logCapture struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err == nil {
		c.entries = append(c.entries, entry)
	}
	return len(p), nil
}

// install makes c the default logger until the test ends.
func (c *logCapture) install(t *testing.T) {
	t.Helper()
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
}

// index returns the position of the first entry with msg whose attributes
// include every key/value in attrs, or -1.
func (c *logCapture) index(msg string, attrs ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
next:
	for i, e := range c.entries {
		if e["msg"] != msg {
			continue
		}
		for j := 0; j+1 < len(attrs); j += 2 {
			if e[attrs[j]] != attrs[j+1] {
				continue next
			}
		}
		return i
	}
	return -1
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStartWorker_RunsCoordinatorUntilCancelled(t *testing.T) {
	capture := &logCapture{}
	capture.install(t)

	var sweeps atomic.Int32
	coord := worker.NewSweepCoordinator("test-coordinator", 5*time.Millisecond, func(ctx context.Context) error {
		sweeps.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	startWorker(ctx, &wg, "test-coordinator", coord.Run)

	waitFor(t, time.Second, func() bool { return sweeps.Load() >= 2 })
	cancel()
	wg.Wait()

	started := capture.index("worker started", "worker", "test-coordinator")
	stopped := capture.index("worker stopped", "worker", "test-coordinator")
	coordStopped := capture.index("sweep coordinator stopped", "worker", "test-coordinator")
	if started == -1 || stopped == -1 || coordStopped == -1 {
		t.Fatalf("missing lifecycle logs: started=%d stopped=%d coordinator=%d", started, stopped, coordStopped)
	}
	if !(started < coordStopped && coordStopped < stopped) {
		t.Errorf("log order started=%d coordinator=%d stopped=%d", started, coordStopped, stopped)
	}

	after := sweeps.Load()
	time.Sleep(20 * time.Millisecond)
	if sweeps.Load() != after {
		t.Error("coordinator kept sweeping after wg.Wait returned")
	}
}

func TestApp_CloseRunsBackendsBeforeStore(t *testing.T) {
	devEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}

	var storeOpenDuringClose bool
	a.closers = append(a.closers, func() error {
		_, err := a.store.GetStats(context.Background())
		storeOpenDuringClose = err == nil
		return nil
	})

	a.Close()

	if !storeOpenDuringClose {
		t.Error("store was closed before a backend closer ran")
	}
	if _, err := a.store.GetStats(context.Background()); err == nil {
		t.Error("store still usable after Close")
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	// Given: a server with the rescore coordinator enabled
	devEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = config.Duration(5 * time.Second)
	cfg.Worker.RescoreInterval = config.Duration(10 * time.Millisecond)

	capture := &logCapture{}
	capture.install(t)

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cancel, cfg, a) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", cfg.Server.Port)
	waitFor(t, 5*time.Second, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})
	waitFor(t, 5*time.Second, func() bool { return capture.index("rescore sweep completed") != -1 })

	// When: the context is cancelled
	cancel()

	// Then: serve returns after stopping everything in order
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}

	order := []int{
		capture.index("router initialized"),
		capture.index("shutdown initiated"),
		capture.index("worker stopped", "worker", "rescore-coordinator"),
		capture.index("shutdown complete"),
	}
	for i, idx := range order {
		if idx == -1 {
			t.Fatalf("missing shutdown log %d: %v", i, order)
		}
		if i > 0 && idx < order[i-1] {
			t.Errorf("shutdown logs out of order: %v", order)
		}
	}
	if capture.index("worker started", "worker", "focus-coordinator") != -1 {
		t.Error("focus coordinator started without an interval")
	}

	if _, err := http.Get(healthURL); err == nil {
		t.Error("server still accepting connections after shutdown")
	}
	if _, err := a.store.GetStats(context.Background()); err == nil {
		t.Error("store still open after shutdown")
	}
}
