package daemon_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/daemon"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/job"
	"clipflow/internal/queue"
	"clipflow/internal/registry"
	"clipflow/internal/scheduler"
	"clipflow/internal/testsupport"
)

type stubDownloader struct{}

func (stubDownloader) Fetch(_ context.Context, url string) (*download.Result, error) {
	return &download.Result{Title: url}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	store := queue.NewStore(cfg)
	reg := registry.NewStore(cfg)
	coordinator := claims.NewCoordinator(cfg, nil)
	runner := job.NewRunner(cfg, reg, coordinator, nil, nil, job.NewFakeClock(time.Now()))
	factory := func(string) driver.Driver { return &driver.Fake{} }
	sched := scheduler.New(cfg, store, reg, coordinator, stubDownloader{}, runner, factory, nil)

	d, err := daemon.New(cfg, store, reg, coordinator, nil, sched, nil, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func quietConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Scheduler.Enabled = false
	})
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := quietConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second instance must fail to acquire the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after lock release failed: %v", err)
	}
	second.Stop()
}

func TestQueueOperations(t *testing.T) {
	cfg := quietConfig(t)
	d := newDaemon(t, cfg)

	if err := d.AddQueueItem("http://example.com/v1"); err != nil {
		t.Fatalf("AddQueueItem failed: %v", err)
	}
	if err := d.AddQueueItem("not a url"); err == nil {
		t.Fatal("expected rejection of a non-http entry")
	}

	items, err := d.ListQueue()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0] != "http://example.com/v1" {
		t.Fatalf("unexpected queue contents: %v", items)
	}

	if err := d.RemoveQueueItem("http://example.com/v1"); err != nil {
		t.Fatalf("RemoveQueueItem failed: %v", err)
	}
	items, err = d.ListQueue()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("queue should be empty, got %v", items)
	}
}

func TestSweepClaims(t *testing.T) {
	cfg := quietConfig(t)
	d := newDaemon(t, cfg)

	coordinator := claims.NewCoordinator(cfg, nil)
	if ok, err := coordinator.TryClaim("http://example.com/v1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	entries, err := os.ReadDir(cfg.ClaimsDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one marker, got %d", len(entries))
	}
	marker := filepath.Join(cfg.ClaimsDir(), entries[0].Name())
	stale := time.Now().Add(-72 * time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf("http://example.com/v1\n%s\n%d\n", stale, os.Getpid())
	if err := os.WriteFile(marker, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := d.SweepClaims()
	if err != nil {
		t.Fatalf("SweepClaims failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one reclaimed marker, got %d", removed)
	}
	if coordinator.IsClaimed("http://example.com/v1") {
		t.Fatal("stale claim should be gone")
	}
}

func TestProcessingControl(t *testing.T) {
	cfg := quietConfig(t)
	d := newDaemon(t, cfg)

	if err := d.StartProcessing(); err == nil {
		t.Fatal("StartProcessing must fail before the daemon runs")
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	status := d.Status()
	if !status.Running || status.Scheduler.Running {
		t.Fatalf("expected daemon up with scheduler idle, got %+v", status)
	}

	if err := d.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing failed: %v", err)
	}
	if !d.Status().Scheduler.Running {
		t.Fatal("scheduler should be running")
	}
	d.StopProcessing()
	if d.Status().Scheduler.Running {
		t.Fatal("scheduler should be stopped")
	}
	d.Stop()
}

func TestRunLogDisabled(t *testing.T) {
	cfg := quietConfig(t)
	d := newDaemon(t, cfg)
	if _, err := d.RunLogTail(context.Background(), 5); err == nil {
		t.Fatal("expected error when the run log is disabled")
	}
}
