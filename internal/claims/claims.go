package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipflow/internal/config"
	"clipflow/internal/fileutil"
	"clipflow/internal/logging"
)

// Coordinator mediates claim markers in a shared directory.
type Coordinator struct {
	dir    string
	logger *slog.Logger
}

// NewCoordinator builds a coordinator over the configured claims directory.
func NewCoordinator(cfg *config.Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		dir:    cfg.ClaimsDir(),
		logger: logging.NewComponentLogger(logger, "claims"),
	}
}

// Dir returns the claims directory.
func (c *Coordinator) Dir() string {
	return c.dir
}

// TryClaim attempts to take exclusive ownership of item. It returns true only
// when this process created the marker; a marker created concurrently by any
// other process makes it return false. Exclusive-create is the sole atomicity
// primitive, so there is no check-then-write window.
func (c *Coordinator) TryClaim(item string) (bool, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return false, fmt.Errorf("ensure claims directory: %w", err)
	}

	path := c.markerPath(item)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create claim marker: %w", err)
	}

	body := fmt.Sprintf("%s\n%s\n%d\n", item, time.Now().UTC().Format(time.RFC3339), os.Getpid())
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, fmt.Errorf("write claim marker: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("close claim marker: %w", err)
	}
	return true, nil
}

// Release deletes the marker for item. Safe to call when no marker exists.
func (c *Coordinator) Release(item string) error {
	return fileutil.RemoveIfExists(c.markerPath(item))
}

// IsClaimed reports whether a marker currently exists for item.
func (c *Coordinator) IsClaimed(item string) bool {
	_, err := os.Stat(c.markerPath(item))
	return err == nil
}

// SweepStale removes markers older than ttl and returns how many it reclaimed.
// The embedded timestamp is authoritative; a missing or corrupt body falls
// back to the file's modification time.
func (c *Coordinator) SweepStale(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read claims directory: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	reclaimed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		created, ok := c.markerCreatedAt(path, entry)
		if !ok {
			continue
		}
		if created.After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			c.logger.Warn("failed to remove stale claim", logging.String("marker", entry.Name()), logging.Error(err))
			continue
		}
		reclaimed++
		c.logger.Info("reclaimed stale claim",
			logging.String("marker", entry.Name()),
			logging.Duration("age", time.Since(created)))
	}
	return reclaimed, nil
}

func (c *Coordinator) markerCreatedAt(path string, entry os.DirEntry) (time.Time, bool) {
	if data, err := os.ReadFile(path); err == nil {
		lines := strings.Split(string(data), "\n")
		if len(lines) >= 2 {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
				return ts, true
			}
		}
	}
	info, err := entry.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (c *Coordinator) markerPath(item string) string {
	sum := sha256.Sum256([]byte(item))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}
