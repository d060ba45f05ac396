package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/job"
	"clipflow/internal/logging"
	"clipflow/internal/queue"
	"clipflow/internal/registry"
	"clipflow/internal/services"
)

// Downloader fetches the artifact for one work item. Implemented by
// download.Service.
type Downloader interface {
	Fetch(ctx context.Context, url string) (*download.Result, error)
}

// Runner executes one dispatched job to a terminal state. Implemented by
// job.Runner.
type Runner interface {
	Run(ctx context.Context, req job.Request) error
}

// Status is a read-only snapshot of scheduler state.
type Status struct {
	Running          bool   `json:"running"`
	IsProcessing     bool   `json:"isProcessing"`
	CurrentItem      string `json:"currentItem,omitempty"`
	QueueLength      int    `json:"queueLength"`
	EditorsAvailable int    `json:"editorsAvailable"`
	LastError        string `json:"lastError,omitempty"`
}

// Scheduler coordinates claims, editor reservation, and job dispatch.
type Scheduler struct {
	cfg        *config.Config
	queue      *queue.Store
	registry   *registry.Store
	claims     *claims.Coordinator
	downloader Downloader
	runner     Runner
	drivers    driver.Factory
	logger     *slog.Logger

	kick chan struct{}

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastLaunch time.Time
	active     map[string]struct{}
	recent     map[string]time.Time
	attempts   map[string]int
}

// New builds a scheduler over the shared stores.
func New(cfg *config.Config, store *queue.Store, reg *registry.Store, coordinator *claims.Coordinator, downloader Downloader, runner Runner, drivers driver.Factory, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		queue:      store,
		registry:   reg,
		claims:     coordinator,
		downloader: downloader,
		runner:     runner,
		drivers:    drivers,
		logger:     logging.NewComponentLogger(logger, "scheduler"),
		kick:       make(chan struct{}, 1),
		active:     make(map[string]struct{}),
		recent:     make(map[string]time.Time),
		attempts:   make(map[string]int),
	}
}

// Start begins the dispatch loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

// Stop terminates the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Kick wakes the loop out of a gate sleep, typically on a queue file change.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Status returns a snapshot for the status query.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	status := Status{
		Running:      s.running,
		IsProcessing: len(s.active) > 0,
	}
	for item := range s.active {
		status.CurrentItem = item
		break
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	if n, err := s.queue.Len(); err == nil {
		status.QueueLength = n
	}
	if editors, err := s.registry.ListAvailable(); err == nil {
		status.EditorsAvailable = len(editors)
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("dispatch loop started")

	for ctx.Err() == nil {
		if err := s.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			s.setLastError(err)
			s.logger.Error("dispatch cycle failed; restarting after cooldown", logging.Error(err))
			if s.sleep(ctx, s.interval(s.cfg.Scheduler.RestartCooldown)) != nil {
				break
			}
		}
	}
	s.logger.Info("dispatch loop stopped")
}

// cycle walks the gate sequence once. A nil return means the cycle either
// dispatched a job or slept through a blocking gate.
func (s *Scheduler) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch cycle panic: %v", r)
		}
	}()

	running, err := s.registry.CountRunning()
	if err != nil {
		return fmt.Errorf("count running editors: %w", err)
	}
	inFlight := running
	if recent := s.recentCount(); recent > inFlight {
		// A registry read that raced a fresh reservation can miss it; the
		// start record stands in until the visibility window lapses or the
		// job finishes.
		inFlight = recent
	}
	if inFlight >= s.cfg.Scheduler.MaxConcurrent {
		return s.sleep(ctx, s.interval(s.cfg.Scheduler.PollInterval))
	}

	available, err := s.registry.ListAvailable()
	if err != nil {
		return fmt.Errorf("list available editors: %w", err)
	}
	if len(available) == 0 {
		return s.sleep(ctx, s.interval(s.cfg.Scheduler.PollInterval))
	}

	items, err := s.queue.List()
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}
	if len(items) == 0 {
		return s.sleep(ctx, s.interval(s.cfg.Scheduler.PollInterval))
	}

	if wait := s.pacingWait(); wait > 0 {
		return s.sleep(ctx, wait)
	}

	claimed := ""
	for _, item := range items {
		ok, claimErr := s.claims.TryClaim(item)
		if claimErr != nil {
			return fmt.Errorf("claim %s: %w", item, claimErr)
		}
		if ok {
			claimed = item
			break
		}
	}
	if claimed == "" {
		// Every snapshot item is held by another worker.
		return s.sleep(ctx, s.interval(s.cfg.Scheduler.ClaimRetryInterval))
	}

	editor, ok, err := s.registry.Reserve()
	if err != nil {
		s.releaseClaim(claimed)
		return fmt.Errorf("reserve editor: %w", err)
	}
	if !ok {
		// The pool drained between the availability gate and here.
		s.releaseClaim(claimed)
		return s.sleep(ctx, s.interval(s.cfg.Scheduler.PollInterval))
	}

	s.markStarted(claimed)
	s.logger.Info("job dispatched",
		logging.String(logging.FieldURL, claimed),
		logging.String(logging.FieldEditor, editor.URL))
	s.wg.Add(1)
	go s.dispatch(ctx, claimed, editor)

	return s.sleep(ctx, s.interval(s.cfg.Scheduler.DispatchInterval))
}

// dispatch fetches the artifact and runs the job, then applies the queue
// retention policy. Runs in its own goroutine.
func (s *Scheduler) dispatch(ctx context.Context, url string, editor registry.Editor) {
	defer s.wg.Done()
	defer s.markFinished(url)

	jobID := uuid.NewString()
	log := s.logger.With(
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldURL, url))

	artifact, err := s.downloader.Fetch(ctx, url)
	if err != nil {
		errorType := services.Classify(err, "")
		log.Error("download failed", logging.String("error_type", errorType), logging.Error(err))
		if completeErr := s.registry.Complete(editor.URL, registry.ResultError, errorType); completeErr != nil {
			log.Warn("failed to record editor error", logging.Error(completeErr))
		}
		s.releaseClaim(url)
		s.handleFailure(url, err)
		return
	}

	req := job.Request{
		ID:       jobID,
		URL:      url,
		Editor:   editor,
		Artifact: artifact,
		Driver:   s.drivers(editor.URL),
	}
	if err := s.runner.Run(ctx, req); err != nil {
		s.handleFailure(url, err)
		return
	}
	s.handleSuccess(url)
}

func (s *Scheduler) handleSuccess(url string) {
	if err := s.queue.Remove(url); err != nil {
		s.logger.Warn("failed to remove completed item", logging.String(logging.FieldURL, url), logging.Error(err))
	}
	if err := s.queue.Archive(url); err != nil {
		s.logger.Warn("failed to archive completed item", logging.String(logging.FieldURL, url), logging.Error(err))
	}
	s.mu.Lock()
	delete(s.attempts, url)
	s.mu.Unlock()
}

// handleFailure applies the retention policy: by default the item stays
// queued for a future cycle; remove_failed drops it immediately; a positive
// max_attempts dead-letters the item once the budget is spent.
func (s *Scheduler) handleFailure(url string, cause error) {
	s.mu.Lock()
	s.attempts[url]++
	attempts := s.attempts[url]
	s.lastErr = cause
	s.mu.Unlock()

	max := s.cfg.Scheduler.MaxAttempts
	log := s.logger.With(logging.String(logging.FieldURL, url), logging.Int("attempts", attempts))

	switch {
	case max > 0 && attempts >= max:
		log.Error("retry budget spent; dead-lettering item", logging.Error(cause))
		if err := s.queue.DeadLetter(url, cause.Error()); err != nil {
			log.Warn("failed to dead-letter item", logging.Error(err))
		}
		if err := s.queue.Remove(url); err != nil {
			log.Warn("failed to remove dead-lettered item", logging.Error(err))
		}
		s.mu.Lock()
		delete(s.attempts, url)
		s.mu.Unlock()
	case s.cfg.Scheduler.RemoveFailed:
		log.Error("job failed; removing item per policy", logging.Error(cause))
		if err := s.queue.Remove(url); err != nil {
			log.Warn("failed to remove failed item", logging.Error(err))
		}
	default:
		log.Error("job failed; item retained for retry", logging.Error(cause))
	}
}

func (s *Scheduler) releaseClaim(url string) {
	if err := s.claims.Release(url); err != nil {
		s.logger.Warn("failed to release claim", logging.String(logging.FieldURL, url), logging.Error(err))
	}
}

// markStarted records pacing and the recently-started allowance that covers
// the gap before the editor reservation is externally observable.
func (s *Scheduler) markStarted(url string) {
	now := time.Now()
	s.mu.Lock()
	s.active[url] = struct{}{}
	s.recent[url] = now
	s.lastLaunch = now
	s.mu.Unlock()
}

func (s *Scheduler) markFinished(url string) {
	s.mu.Lock()
	delete(s.active, url)
	delete(s.recent, url)
	s.mu.Unlock()
}

func (s *Scheduler) recentCount() int {
	window := s.interval(s.cfg.Scheduler.StartVisibilityWindow)
	cutoff := time.Now().Add(-window)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for url, at := range s.recent {
		if at.Before(cutoff) {
			delete(s.recent, url)
			continue
		}
		n++
	}
	return n
}

func (s *Scheduler) pacingWait() time.Duration {
	spacing := s.interval(s.cfg.Scheduler.LaunchSpacing)
	if spacing <= 0 {
		return 0
	}
	s.mu.Lock()
	last := s.lastLaunch
	s.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	remaining := spacing - time.Since(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// sleep waits for d, a kick, or cancellation.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.kick:
		return nil
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) interval(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
