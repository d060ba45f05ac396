package testsupport

import (
	"path/filepath"
	"testing"

	"clipflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Scheduler and stage intervals are shrunk so tests that do sleep finish
// quickly; tests that must not sleep inject a fake clock instead.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scheduler.PollInterval = 1
	cfg.Scheduler.ClaimRetryInterval = 1
	cfg.Scheduler.DispatchInterval = 1
	cfg.Scheduler.LaunchSpacing = 0
	cfg.Scheduler.RestartCooldown = 1
	cfg.Scheduler.WatchInterval = 1
	cfg.Stages.PollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxConcurrent overrides the scheduler concurrency cap.
func WithMaxConcurrent(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.MaxConcurrent = n
	}
}

// WithMaxAttempts overrides the per-item attempt ceiling.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.MaxAttempts = n
	}
}

// WithRemoveFailed enables remove-on-failure queue policy.
func WithRemoveFailed() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.RemoveFailed = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
