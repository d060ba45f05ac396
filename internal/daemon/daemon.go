package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/logging"
	"clipflow/internal/queue"
	"clipflow/internal/registry"
	"clipflow/internal/runlog"
	"clipflow/internal/scheduler"
)

// SocketPath returns the IPC socket location for the given configuration.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "clipflowd.sock")
}

// PIDFilePath returns the daemon pid file location.
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "clipflowd.pid")
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	queue     *queue.Store
	registry  *registry.Store
	claims    *claims.Coordinator
	runlog    *runlog.Store
	scheduler *scheduler.Scheduler
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockPath     string
	QueuePath    string
	RegistryPath string
	Scheduler    scheduler.Status
}

// New constructs a daemon around initialized collaborators. recorder may be
// nil when the run log is disabled.
func New(cfg *config.Config, store *queue.Store, reg *registry.Store, coordinator *claims.Coordinator, recorder *runlog.Store, sched *scheduler.Scheduler, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || reg == nil || coordinator == nil || sched == nil {
		return nil, errors.New("daemon requires config, stores, claim coordinator, and scheduler")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipflowd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		queue:     store,
		registry:  reg,
		claims:    coordinator,
		runlog:    recorder,
		scheduler: sched,
		logPath:   logPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the background services.
// The scheduler only auto-starts when the enable flag is set; otherwise it
// waits for an explicit StartProcessing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipflow daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	sweeper := claims.NewSweeper(
		d.claims,
		time.Duration(d.cfg.Claims.TTLHours)*time.Hour,
		time.Duration(d.cfg.Claims.SweepIntervalHours)*time.Hour,
		d.logger,
	)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sweeper.Run(d.ctx)
	}()

	if d.cfg.Scheduler.Enabled {
		watcher := queue.NewWatcher(
			d.queue.Path(),
			time.Duration(d.cfg.Scheduler.WatchInterval)*time.Second,
			d.logger,
		)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			watcher.Run(d.ctx, d.scheduler.Kick)
		}()

		if err := d.scheduler.Start(d.ctx); err != nil {
			d.logger.Warn("scheduler auto-start failed", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.scheduler.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.runlog != nil {
		return d.runlog.Close()
	}
	return nil
}

// StartProcessing starts the dispatch loop on demand.
func (d *Daemon) StartProcessing() error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	return d.scheduler.Start(d.ctx)
}

// StopProcessing stops the dispatch loop and waits for in-flight jobs.
func (d *Daemon) StopProcessing() {
	d.scheduler.Stop()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockPath:     d.lockPath,
		QueuePath:    d.queue.Path(),
		RegistryPath: d.registry.Path(),
		Scheduler:    d.scheduler.Status(),
	}
}

// AddQueueItem appends a URL to the queue and wakes the scheduler.
func (d *Daemon) AddQueueItem(url string) error {
	if err := d.queue.Add(url); err != nil {
		return err
	}
	d.scheduler.Kick()
	return nil
}

// RemoveQueueItem removes a URL from the queue. Removing an absent item is
// not an error.
func (d *Daemon) RemoveQueueItem(url string) error {
	return d.queue.Remove(url)
}

// ListQueue returns the current queue snapshot.
func (d *Daemon) ListQueue() ([]string, error) {
	return d.queue.List()
}

// SweepClaims removes claim markers older than the configured TTL and
// returns how many were reclaimed.
func (d *Daemon) SweepClaims() (int, error) {
	return d.claims.SweepStale(time.Duration(d.cfg.Claims.TTLHours) * time.Hour)
}

// RunLogTail returns the newest finished-run records.
func (d *Daemon) RunLogTail(ctx context.Context, limit int) ([]runlog.Entry, error) {
	if d.runlog == nil {
		return nil, errors.New("run log is disabled")
	}
	return d.runlog.Tail(ctx, limit)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}
