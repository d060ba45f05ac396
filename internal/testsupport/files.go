package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"clipflow/internal/config"
)

// WriteQueue fills the queue file with the given URLs, one per line.
func WriteQueue(t testing.TB, cfg *config.Config, urls ...string) {
	t.Helper()

	var data []byte
	for _, url := range urls {
		data = append(data, url...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(cfg.QueueFile(), data, 0o644); err != nil {
		t.Fatalf("write queue file: %v", err)
	}
}

// Editor mirrors one registry record for seeding editors.json in tests.
type Editor struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	Result    string `json:"result"`
	LastRun   string `json:"lastRun,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// WriteEditors seeds the registry file with a bare array of editor records.
func WriteEditors(t testing.TB, cfg *config.Config, editors ...Editor) {
	t.Helper()

	data, err := json.MarshalIndent(editors, "", "  ")
	if err != nil {
		t.Fatalf("marshal editors: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.RegistryFile()), 0o755); err != nil {
		t.Fatalf("ensure registry dir: %v", err)
	}
	if err := os.WriteFile(cfg.RegistryFile(), data, 0o644); err != nil {
		t.Fatalf("write registry file: %v", err)
	}
}

// AvailableEditor returns an editor record in the freshly provisioned state.
func AvailableEditor(url string) Editor {
	return Editor{URL: url, Status: "available"}
}

// WriteFile creates path with the supplied contents, making parent
// directories as needed.
func WriteFile(t testing.TB, path string, contents []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
