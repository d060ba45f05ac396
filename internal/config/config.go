package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	UploadsDir string `toml:"uploads_dir"`
	LogDir     string `toml:"log_dir"`
}

// Scheduler contains configuration for the batch scheduler loop.
type Scheduler struct {
	// Enabled gates daemon auto-start and queue file watching.
	Enabled bool `toml:"enabled"`
	// MaxConcurrent caps how many jobs may run at once.
	MaxConcurrent int `toml:"max_concurrent"`
	// PollInterval is the backoff (seconds) when capacity, availability,
	// or the queue blocks a dispatch.
	PollInterval int `toml:"poll_interval"`
	// ClaimRetryInterval is the backoff (seconds) when every queued item
	// is already claimed by another worker.
	ClaimRetryInterval int `toml:"claim_retry_interval"`
	// DispatchInterval is the pause (seconds) after launching a job.
	DispatchInterval int `toml:"dispatch_interval"`
	// LaunchSpacing is the minimum gap (seconds) between job starts.
	LaunchSpacing int `toml:"launch_spacing"`
	// RestartCooldown is the pause (seconds) before the loop restarts
	// after an unexpected failure.
	RestartCooldown int `toml:"restart_cooldown"`
	// StartVisibilityWindow is how long (seconds) a freshly launched job
	// counts against the cap before the registry reflects it.
	StartVisibilityWindow int `toml:"start_visibility_window"`
	// MaxAttempts bounds per-item retries. Zero retries forever.
	MaxAttempts int `toml:"max_attempts"`
	// RemoveFailed drops failed items from the queue instead of
	// retaining them for a later cycle.
	RemoveFailed bool `toml:"remove_failed"`
	// WatchInterval is the queue file poll cadence (seconds).
	WatchInterval int `toml:"watch_interval"`
}

// Claims contains configuration for claim markers and their garbage collection.
type Claims struct {
	TTLHours           int `toml:"ttl_hours"`
	SweepIntervalHours int `toml:"sweep_interval_hours"`
}

// Stages contains per-stage ceilings for the job pipeline. All values are
// seconds unless noted.
type Stages struct {
	WorkspaceLoadTimeout int `toml:"workspace_load_timeout"`
	TimelineReadyTimeout int `toml:"timeline_ready_timeout"`
	UploadStartTimeout   int `toml:"upload_start_timeout"`
	TranscodeTimeout     int `toml:"transcode_timeout"`
	IndexingTimeout      int `toml:"indexing_timeout"`
	MediaReadyTimeout    int `toml:"media_ready_timeout"`
	TransformTimeout     int `toml:"transform_timeout"`
	TransformRetries     int `toml:"transform_retries"`
	SaveTimeout          int `toml:"save_timeout"`
	FinalizeDelay        int `toml:"finalize_delay"`
	PollInterval         int `toml:"poll_interval"`
}

// Downloader contains configuration for the external media fetch tool.
type Downloader struct {
	YtdlpPath   string `toml:"ytdlp_path"`
	FfmpegPath  string `toml:"ffmpeg_path"`
	CookiesFile string `toml:"cookies_file"`
	Retries     int    `toml:"retries"`
	// Sources longer than TrimThresholdMinutes are trimmed to a random
	// window between TrimMinMinutes and TrimMaxMinutes.
	TrimThresholdMinutes int `toml:"trim_threshold_minutes"`
	TrimMinMinutes       int `toml:"trim_min_minutes"`
	TrimMaxMinutes       int `toml:"trim_max_minutes"`
}

// Driver contains configuration for the automation bridge client.
type Driver struct {
	ConnectTimeout int    `toml:"connect_timeout"`
	RequestTimeout int    `toml:"request_timeout"`
	BridgeToken    string `toml:"bridge_token"`
}

// RunLog contains configuration for the completion log store.
type RunLog struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipflow.
//
// Configuration sections by subsystem:
//   - Paths: data, uploads, and log directories
//   - Scheduler: concurrency cap, gate intervals, retry policy
//   - Claims: marker TTL and sweep cadence
//   - Stages: pipeline stage ceilings and poll interval
//   - Downloader: yt-dlp invocation settings
//   - Driver: automation bridge connection settings
//   - RunLog: completion log store
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Claims     Claims     `toml:"claims"`
	Stages     Stages     `toml:"stages"`
	Downloader Downloader `toml:"downloader"`
	Driver     Driver     `toml:"driver"`
	RunLog     RunLog     `toml:"runlog"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadsDir, c.Paths.LogDir, c.ClaimsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueFile returns the path of the pending work item list.
func (c *Config) QueueFile() string {
	return filepath.Join(c.Paths.DataDir, "queue")
}

// HistoryFile returns the path of the append-only completion history.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.Paths.DataDir, "processed")
}

// DeadLetterFile returns the path of the exhausted-item list.
func (c *Config) DeadLetterFile() string {
	return filepath.Join(c.Paths.DataDir, "failed")
}

// RegistryFile returns the path of the editor pool registry.
func (c *Config) RegistryFile() string {
	return filepath.Join(c.Paths.DataDir, "editors.json")
}

// ClaimsDir returns the directory holding claim marker files.
func (c *Config) ClaimsDir() string {
	return filepath.Join(c.Paths.DataDir, "claims")
}

// RunLogPath returns the path of the completion log database.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Paths.DataDir, "runlog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
