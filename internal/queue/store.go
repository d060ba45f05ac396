package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipflow/internal/config"
	"clipflow/internal/fileutil"
)

// Store manages the queue, history, and dead-letter files.
type Store struct {
	mu             sync.Mutex
	queuePath      string
	historyPath    string
	deadLetterPath string
}

// NewStore builds a store over the configured data files.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		queuePath:      cfg.QueueFile(),
		historyPath:    cfg.HistoryFile(),
		deadLetterPath: cfg.DeadLetterFile(),
	}
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.queuePath
}

// List returns the pending items in file order. A missing queue file is
// treated as empty and created lazily so external producers and hand edits
// have a stable target.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Len reports the number of pending items.
func (s *Store) Len() (int, error) {
	items, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Add appends a URL to the queue file. The URL is normalized the same way
// List normalizes lines; items already present are not duplicated.
func (s *Store) Add(url string) error {
	normalized, ok := normalizeLine(url)
	if !ok {
		return fmt.Errorf("not a usable queue entry: %q", url)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readLocked()
	if err != nil {
		return err
	}
	for _, existing := range items {
		if existing == normalized {
			return nil
		}
	}

	f, err := os.OpenFile(s.queuePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open queue file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(normalized + "\n"); err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return f.Close()
}

// Remove rewrites the queue with item filtered out. Removing an absent item
// is not an error.
func (s *Store) Remove(item string) error {
	normalized, ok := normalizeLine(item)
	if !ok {
		normalized = strings.TrimSpace(item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readLocked()
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(items))
	for _, existing := range items {
		if existing == normalized {
			continue
		}
		kept = append(kept, existing)
	}
	if len(kept) == len(items) {
		return nil
	}

	var b strings.Builder
	for _, line := range kept {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(s.queuePath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("rewrite queue file: %w", err)
	}
	return nil
}

// Archive appends a timestamped completion record for item to the history
// file. Independent of Remove; callers sequence the two.
func (s *Store) Archive(item string) error {
	record := fmt.Sprintf("%s - %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(item))
	return appendLine(s.historyPath, record)
}

// DeadLetter appends item with a failure reason to the dead-letter file.
func (s *Store) DeadLetter(item, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	record := fmt.Sprintf("%s - %s - %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(item), reason)
	return appendLine(s.deadLetterPath, record)
}

func (s *Store) readLocked() ([]string, error) {
	data, err := os.ReadFile(s.queuePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read queue file: %w", err)
		}
		if err := s.createLocked(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var items []string
	for _, line := range strings.Split(string(data), "\n") {
		if normalized, ok := normalizeLine(line); ok {
			items = append(items, normalized)
		}
	}
	return items, nil
}

func (s *Store) createLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.queuePath), 0o755); err != nil {
		return fmt.Errorf("ensure queue directory: %w", err)
	}
	f, err := os.OpenFile(s.queuePath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create queue file: %w", err)
	}
	return f.Close()
}

func normalizeLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimRight(trimmed, ".")
	if trimmed == "" || !strings.HasPrefix(trimmed, "http") {
		return "", false
	}
	return trimmed, true
}

func appendLine(path, record string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.WriteString(record); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
