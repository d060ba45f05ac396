package scheduler_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/job"
	"clipflow/internal/queue"
	"clipflow/internal/registry"
	"clipflow/internal/scheduler"
	"clipflow/internal/services"
	"clipflow/internal/testsupport"
)

type fakeDownloader struct {
	err error
}

func (d *fakeDownloader) Fetch(_ context.Context, url string) (*download.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &download.Result{Title: "clip for " + url}, nil
}

// fakeRunner honors the job runner contract (release the claim, mark the
// editor) while letting tests hold jobs open through a gate channel.
type fakeRunner struct {
	registry *registry.Store
	claims   *claims.Coordinator
	gate      chan struct{}
	started   chan string
	failWith  error
	failStage string

	mu      sync.Mutex
	running int
	maxSeen int
}

func newFakeRunner(reg *registry.Store, coordinator *claims.Coordinator, blocking bool) *fakeRunner {
	gate := make(chan struct{})
	if !blocking {
		close(gate)
	}
	return &fakeRunner{
		registry: reg,
		claims:   coordinator,
		gate:     gate,
		started:  make(chan string, 8),
	}
}

func (r *fakeRunner) Run(ctx context.Context, req job.Request) error {
	r.mu.Lock()
	r.running++
	if r.running > r.maxSeen {
		r.maxSeen = r.running
	}
	r.mu.Unlock()

	select {
	case r.started <- req.URL:
	default:
	}
	select {
	case <-r.gate:
	case <-ctx.Done():
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
		return ctx.Err()
	}

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	if err := r.claims.Release(req.URL); err != nil {
		return err
	}
	if r.failWith != nil {
		_ = r.registry.Complete(req.Editor.URL, registry.ResultError, services.Classify(r.failWith, r.failStage))
		return r.failWith
	}
	return r.registry.Complete(req.Editor.URL, registry.ResultComplete, "")
}

func (r *fakeRunner) MaxSeen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxSeen
}

type harness struct {
	cfg         *config.Config
	queue       *queue.Store
	registry    *registry.Store
	coordinator *claims.Coordinator
	downloader  *fakeDownloader
	runner      *fakeRunner
	scheduler   *scheduler.Scheduler
}

func newHarness(t *testing.T, blocking bool, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := queue.NewStore(cfg)
	reg := registry.NewStore(cfg)
	coordinator := claims.NewCoordinator(cfg, nil)
	downloader := &fakeDownloader{}
	runner := newFakeRunner(reg, coordinator, blocking)

	factory := func(string) driver.Driver { return &driver.Fake{} }
	s := scheduler.New(cfg, store, reg, coordinator, downloader, runner, factory, nil)

	return &harness{
		cfg:         cfg,
		queue:       store,
		registry:    reg,
		coordinator: coordinator,
		downloader:  downloader,
		runner:      runner,
		scheduler:   s,
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.scheduler.Stop)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func awaitStart(t *testing.T, r *fakeRunner, timeout time.Duration) string {
	t.Helper()
	select {
	case url := <-r.started:
		return url
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a job to start")
		return ""
	}
}

func TestConcurrencyCap(t *testing.T) {
	h := newHarness(t, true, testsupport.WithMaxConcurrent(2))
	testsupport.WriteQueue(t, h.cfg,
		"http://example.com/v1",
		"http://example.com/v2",
		"http://example.com/v3",
		"http://example.com/v4",
	)
	testsupport.WriteEditors(t, h.cfg,
		testsupport.AvailableEditor("http://editor-1"),
		testsupport.AvailableEditor("http://editor-2"),
		testsupport.AvailableEditor("http://editor-3"),
		testsupport.AvailableEditor("http://editor-4"),
	)

	h.start(t)

	awaitStart(t, h.runner, 10*time.Second)
	awaitStart(t, h.runner, 10*time.Second)

	// Both slots are held open; the cap gate must not admit a third job.
	time.Sleep(2500 * time.Millisecond)
	if got := h.runner.MaxSeen(); got != 2 {
		t.Fatalf("expected at most two concurrent jobs, saw %d", got)
	}
	select {
	case url := <-h.runner.started:
		t.Fatalf("third job %q started over the cap", url)
	default:
	}

	h.runner.gate <- struct{}{}
	h.runner.gate <- struct{}{}
	awaitStart(t, h.runner, 15*time.Second)
	awaitStart(t, h.runner, 15*time.Second)
	h.runner.gate <- struct{}{}
	h.runner.gate <- struct{}{}

	waitFor(t, 10*time.Second, "queue to drain", func() bool {
		n, err := h.queue.Len()
		return err == nil && n == 0
	})
	if got := h.runner.MaxSeen(); got > 2 {
		t.Fatalf("concurrency cap violated: saw %d", got)
	}
}

func TestDispatchScenario(t *testing.T) {
	h := newHarness(t, true)
	testsupport.WriteQueue(t, h.cfg, "http://example.com/v1", "http://example.com/v2")
	testsupport.WriteEditors(t, h.cfg, testsupport.AvailableEditor("http://editor-1"))

	h.start(t)

	if url := awaitStart(t, h.runner, 10*time.Second); url != "http://example.com/v1" {
		t.Fatalf("expected head of queue first, got %q", url)
	}

	// Mid-flight: the single editor is reserved, the claim is held, and the
	// second item waits because capacity is exhausted.
	editors, err := h.registry.List()
	if err != nil {
		t.Fatal(err)
	}
	if editors[0].Status != registry.StatusInUse || editors[0].Result != registry.ResultRunning {
		t.Fatalf("editor not reserved: %+v", editors[0])
	}
	if !h.coordinator.IsClaimed("http://example.com/v1") {
		t.Fatal("claim for v1 not held")
	}
	select {
	case url := <-h.runner.started:
		t.Fatalf("second job %q started without capacity", url)
	default:
	}

	h.runner.gate <- struct{}{}

	waitFor(t, 10*time.Second, "v1 to leave the queue", func() bool {
		items, err := h.queue.List()
		return err == nil && len(items) == 1 && items[0] == "http://example.com/v2"
	})
	waitFor(t, 5*time.Second, "claim release", func() bool {
		return !h.coordinator.IsClaimed("http://example.com/v1")
	})

	editors, err = h.registry.List()
	if err != nil {
		t.Fatal(err)
	}
	if editors[0].Result != registry.ResultComplete {
		t.Fatalf("editor not marked complete: %+v", editors[0])
	}

	history, err := os.ReadFile(h.cfg.HistoryFile())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(history)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "http://example.com/v1") {
		t.Fatalf("expected one history record for v1, got %q", history)
	}

	status := h.scheduler.Status()
	if !status.Running {
		t.Fatal("status must report the loop running")
	}
	if status.QueueLength != 1 || status.EditorsAvailable != 0 {
		t.Fatalf("unexpected status snapshot: %+v", status)
	}
}

func TestFailureRetainsItem(t *testing.T) {
	h := newHarness(t, false)
	h.runner.failWith = services.Wrap(services.ErrTimeout, "transcode", "wait", "stage ceiling exceeded", nil)
	h.runner.failStage = "transcode"
	testsupport.WriteQueue(t, h.cfg, "http://example.com/v1")
	testsupport.WriteEditors(t, h.cfg, testsupport.AvailableEditor("http://editor-1"))

	h.start(t)

	waitFor(t, 10*time.Second, "editor to record the failure", func() bool {
		editors, err := h.registry.List()
		return err == nil && editors[0].Result == registry.ResultError
	})

	items, err := h.queue.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0] != "http://example.com/v1" {
		t.Fatalf("failed item must stay queued, got %v", items)
	}
	editors, err := h.registry.List()
	if err != nil {
		t.Fatal(err)
	}
	if editors[0].ErrorType != "stage_timeout:transcode" {
		t.Fatalf("expected classified error type, got %q", editors[0].ErrorType)
	}
	if h.coordinator.IsClaimed("http://example.com/v1") {
		t.Fatal("claim must be released after failure")
	}
}

func TestFailureRemovePolicy(t *testing.T) {
	h := newHarness(t, false, testsupport.WithRemoveFailed())
	h.runner.failWith = services.Wrap(services.ErrTimeout, "save", "wait", "stage ceiling exceeded", nil)
	h.runner.failStage = "save"
	testsupport.WriteQueue(t, h.cfg, "http://example.com/v1")
	testsupport.WriteEditors(t, h.cfg, testsupport.AvailableEditor("http://editor-1"))

	h.start(t)

	waitFor(t, 10*time.Second, "failed item removal", func() bool {
		n, err := h.queue.Len()
		return err == nil && n == 0
	})
	if _, err := os.Stat(h.cfg.HistoryFile()); err == nil {
		history, readErr := os.ReadFile(h.cfg.HistoryFile())
		if readErr == nil && strings.TrimSpace(string(history)) != "" {
			t.Fatalf("failed item must not reach history, got %q", history)
		}
	}
}

func TestFailureDeadLetterAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, false, testsupport.WithMaxAttempts(2))
	h.runner.failWith = services.Wrap(services.ErrDriverUnavailable, "", "check", "bridge unreachable", nil)
	testsupport.WriteQueue(t, h.cfg, "http://example.com/v1")
	testsupport.WriteEditors(t, h.cfg,
		testsupport.AvailableEditor("http://editor-1"),
		testsupport.AvailableEditor("http://editor-2"),
	)

	h.start(t)

	waitFor(t, 20*time.Second, "dead-letter record", func() bool {
		data, err := os.ReadFile(h.cfg.DeadLetterFile())
		return err == nil && strings.Contains(string(data), "http://example.com/v1")
	})
	waitFor(t, 5*time.Second, "queue to drop the item", func() bool {
		n, err := h.queue.Len()
		return err == nil && n == 0
	})
}

func TestDownloadFailure(t *testing.T) {
	h := newHarness(t, false)
	h.downloader.err = services.Wrap(services.ErrDownload, "", "fetch", "exit status 1", nil)
	testsupport.WriteQueue(t, h.cfg, "http://example.com/v1")
	testsupport.WriteEditors(t, h.cfg, testsupport.AvailableEditor("http://editor-1"))

	h.start(t)

	waitFor(t, 10*time.Second, "editor to record the failure", func() bool {
		editors, err := h.registry.List()
		return err == nil && editors[0].Result == registry.ResultError
	})
	editors, err := h.registry.List()
	if err != nil {
		t.Fatal(err)
	}
	if editors[0].ErrorType != "download_failed" {
		t.Fatalf("expected download_failed, got %q", editors[0].ErrorType)
	}
	if h.coordinator.IsClaimed("http://example.com/v1") {
		t.Fatal("claim must be released when the download fails")
	}
	items, listErr := h.queue.List()
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(items) != 1 {
		t.Fatalf("item must stay queued, got %v", items)
	}
}

func TestKickWakesEmptyQueueSleep(t *testing.T) {
	slowPoll := func(cfg *config.Config) { cfg.Scheduler.PollInterval = 300 }
	h := newHarness(t, false, slowPoll)
	testsupport.WriteEditors(t, h.cfg, testsupport.AvailableEditor("http://editor-1"))

	h.start(t)
	// Let the loop settle into the long empty-queue sleep.
	time.Sleep(500 * time.Millisecond)

	if err := h.queue.Add("http://example.com/v1"); err != nil {
		t.Fatal(err)
	}
	h.scheduler.Kick()

	if url := awaitStart(t, h.runner, 10*time.Second); url != "http://example.com/v1" {
		t.Fatalf("expected kicked dispatch of v1, got %q", url)
	}
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t, false)
	h.start(t)
	if err := h.scheduler.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestRealRunnerEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := queue.NewStore(cfg)
	reg := registry.NewStore(cfg)
	coordinator := claims.NewCoordinator(cfg, nil)

	runner := job.NewRunner(cfg, reg, coordinator, nil, nil, job.NewFakeClock(time.Now()))
	factory := func(string) driver.Driver { return &driver.Fake{} }
	s := scheduler.New(cfg, store, reg, coordinator, &fakeDownloader{}, runner, factory, nil)

	testsupport.WriteQueue(t, cfg, "http://example.com/v1")
	testsupport.WriteEditors(t, cfg, testsupport.AvailableEditor("http://editor-1"))

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)

	waitFor(t, 15*time.Second, "end-to-end completion", func() bool {
		n, err := store.Len()
		if err != nil || n != 0 {
			return false
		}
		editors, err := reg.List()
		return err == nil && len(editors) == 1 && editors[0].Result == registry.ResultComplete
	})
	if coordinator.IsClaimed("http://example.com/v1") {
		t.Fatal("claim must be released")
	}
}
