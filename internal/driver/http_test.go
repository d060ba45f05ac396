package driver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"clipflow/internal/driver"
	"clipflow/internal/services"
	"clipflow/internal/testsupport"
)

func TestBridgeActionAndCheck(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/upload":
			gotAuth = r.Header.Get("Authorization")
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			gotPath = payload["path"]
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case "/media/transcode/complete":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Driver.BridgeToken = "secret"
	bridge := driver.NewBridge(cfg, server.URL)

	if err := bridge.Upload(context.Background(), "/tmp/video.mp4"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotPath != "/tmp/video.mp4" {
		t.Fatalf("expected path payload, got %q", gotPath)
	}

	done, err := bridge.TranscodeComplete(context.Background())
	if err != nil || !done {
		t.Fatalf("expected done=true, got done=%v err=%v", done, err)
	}
}

func TestBridgeCheckNotDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "done": false})
	}))
	defer server.Close()

	bridge := driver.NewBridge(testsupport.NewConfig(t), server.URL)
	done, err := bridge.SaveComplete(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("expected done=false while bridge is still working")
	}
}

func TestBridgeTransientSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "transient": true, "error": "transform busy"})
	}))
	defer server.Close()

	bridge := driver.NewBridge(testsupport.NewConfig(t), server.URL)
	err := bridge.ApplyTransform(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestBridgeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	bridge := driver.NewBridge(testsupport.NewConfig(t), server.URL)
	if err := bridge.OpenWorkspace(context.Background()); err != nil {
		t.Fatalf("expected retries to absorb 5xx responses, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected three attempts, got %d", calls.Load())
	}
}

func TestBridgeClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	bridge := driver.NewBridge(testsupport.NewConfig(t), server.URL)
	err := bridge.OpenWorkspace(context.Background())
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if errors.Is(err, services.ErrDriverUnavailable) {
		t.Fatalf("4xx must not classify as driver unavailable: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestBridgeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	bridge := driver.NewBridge(testsupport.NewConfig(t), server.URL)
	err := bridge.OpenWorkspace(context.Background())
	if !errors.Is(err, services.ErrDriverUnavailable) {
		t.Fatalf("expected driver-unavailable marker, got %v", err)
	}
}
