package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"clipflow/internal/config"
	"clipflow/internal/fileutil"
)

// Editor statuses.
const (
	StatusAvailable = "available"
	StatusInUse     = "in-use"
)

// Run results. An editor with no result has not run yet.
const (
	ResultRunning  = "running"
	ResultComplete = "complete"
	ResultError    = "error"
)

// Editor is one externally managed automation session slot.
type Editor struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	LastRun   string `json:"lastRun,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// Settings carries optional pool-wide knobs stored alongside the editors.
// The store only round-trips them; external tooling owns their meaning.
type Settings struct {
	TabRotationEnabled  bool `json:"tabRotationEnabled,omitempty"`
	TabRotationInterval int  `json:"tabRotationIntervalSeconds,omitempty"`
}

type document struct {
	Editors  []Editor  `json:"editors"`
	Settings *Settings `json:"settings,omitempty"`

	// bareArray records which top-level JSON shape the file used so a
	// rewrite round-trips it.
	bareArray bool
}

// Store manages the registry file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore builds a store over the configured registry file.
func NewStore(cfg *config.Config) *Store {
	return &Store{path: cfg.RegistryFile()}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// List returns every editor record. A missing file is an empty pool.
func (s *Store) List() ([]Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	return doc.Editors, nil
}

// ListAvailable returns editors with status available.
func (s *Store) ListAvailable() ([]Editor, error) {
	editors, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Editor
	for _, e := range editors {
		if e.Status == StatusAvailable {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountRunning returns the number of editors whose result is running. This is
// the authoritative concurrency signal for the scheduler.
func (s *Store) CountRunning() (int, error) {
	editors, err := s.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range editors {
		if e.Result == ResultRunning {
			count++
		}
	}
	return count, nil
}

// Reserve marks the first available editor in-use with a running result and
// rewrites the file as one step. Returns false when no editor is available.
func (s *Store) Reserve() (Editor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return Editor{}, false, err
	}

	for i := range doc.Editors {
		if doc.Editors[i].Status != StatusAvailable {
			continue
		}
		doc.Editors[i].Status = StatusInUse
		doc.Editors[i].Result = ResultRunning
		doc.Editors[i].LastRun = time.Now().UTC().Format(time.RFC3339)
		doc.Editors[i].ErrorType = ""
		if err := s.writeLocked(doc); err != nil {
			return Editor{}, false, err
		}
		return doc.Editors[i], true, nil
	}
	return Editor{}, false, nil
}

// Complete records the terminal outcome for the editor identified by url.
// The status stays in-use; slots are recycled only by external restart.
func (s *Store) Complete(url, result, errorType string) error {
	switch result {
	case ResultComplete, ResultError:
	default:
		return fmt.Errorf("registry: invalid terminal result %q", result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}

	for i := range doc.Editors {
		if doc.Editors[i].URL != url {
			continue
		}
		doc.Editors[i].Result = result
		if result == ResultError {
			doc.Editors[i].ErrorType = strings.TrimSpace(errorType)
		} else {
			doc.Editors[i].ErrorType = ""
		}
		return s.writeLocked(doc)
	}
	return fmt.Errorf("registry: no editor with url %q", url)
}

func (s *Store) readLocked() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{bareArray: true}, nil
		}
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return &document{bareArray: true}, nil
	}

	doc := &document{}
	if strings.HasPrefix(trimmed, "[") {
		doc.bareArray = true
		if err := json.Unmarshal(data, &doc.Editors); err != nil {
			return nil, fmt.Errorf("parse registry file: %w", err)
		}
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	return doc, nil
}

func (s *Store) writeLocked(doc *document) error {
	var (
		data []byte
		err  error
	)
	if doc.bareArray {
		data, err = json.MarshalIndent(doc.Editors, "", "  ")
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("rewrite registry file: %w", err)
	}
	return nil
}
