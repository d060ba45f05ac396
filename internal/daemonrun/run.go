// Package daemonrun wires the daemon process: logger, pid file, stores,
// scheduler, IPC server, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/daemon"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/ipc"
	"clipflow/internal/job"
	"clipflow/internal/logging"
	"clipflow/internal/queue"
	"clipflow/internal/registry"
	"clipflow/internal/runlog"
	"clipflow/internal/scheduler"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the clipflow daemon runtime loop and blocks until a shutdown
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "clipflow.log")
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := daemon.PIDFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store := queue.NewStore(cfg)
	reg := registry.NewStore(cfg)
	coordinator := claims.NewCoordinator(cfg, logger)

	var recorder *runlog.Store
	if cfg.RunLog.Enabled {
		recorder, err = runlog.Open(cfg)
		if err != nil {
			logger.Warn("run log unavailable; completions will not be recorded", logging.Error(err))
		}
	}

	downloader := download.NewService(cfg, logger)
	runner := job.NewRunner(cfg, reg, coordinator, runlogRecorder(recorder), logger, nil)
	sched := scheduler.New(cfg, store, reg, coordinator, downloader, runner, driver.NewFactory(cfg), logger)

	d, err := daemon.New(cfg, store, reg, coordinator, recorder, sched, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, daemon.SocketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	return nil
}

// runlogRecorder keeps a typed nil out of the runner's Recorder interface.
func runlogRecorder(store *runlog.Store) job.Recorder {
	if store == nil {
		return nil
	}
	return store
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
