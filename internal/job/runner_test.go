package job_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/job"
	"clipflow/internal/registry"
	"clipflow/internal/runlog"
	"clipflow/internal/services"
	"clipflow/internal/testsupport"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []runlog.Entry
	fail    bool
}

func (r *memRecorder) Record(_ context.Context, entry runlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("recorder down")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memRecorder) Entries() []runlog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runlog.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

type fixture struct {
	cfg         *config.Config
	registry    *registry.Store
	coordinator *claims.Coordinator
	recorder    *memRecorder
	runner      *job.Runner
	request     job.Request
	fake        *driver.Fake
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	testsupport.WriteEditors(t, cfg, testsupport.AvailableEditor("http://editor-1"))

	reg := registry.NewStore(cfg)
	editor, ok, err := reg.Reserve()
	if err != nil || !ok {
		t.Fatalf("reserve editor: ok=%v err=%v", ok, err)
	}

	coordinator := claims.NewCoordinator(cfg, nil)
	const url = "http://example.com/v1"
	if ok, err := coordinator.TryClaim(url); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	artifactPath := filepath.Join(cfg.Paths.UploadsDir, "clip.mp4")
	infoPath := filepath.Join(cfg.Paths.UploadsDir, "clip.info.json")
	testsupport.WriteFile(t, artifactPath, []byte("media"))
	testsupport.WriteFile(t, infoPath, []byte("{}"))

	recorder := &memRecorder{}
	fake := &driver.Fake{}
	runner := job.NewRunner(cfg, reg, coordinator, recorder, nil, job.NewFakeClock(time.Now()))

	return &fixture{
		cfg:         cfg,
		registry:    reg,
		coordinator: coordinator,
		recorder:    recorder,
		runner:      runner,
		fake:        fake,
		request: job.Request{
			ID:     "job-1",
			URL:    url,
			Editor: editor,
			Artifact: &download.Result{
				Path:     artifactPath,
				InfoPath: infoPath,
				Title:    "clip",
			},
			Driver: fake,
		},
	}
}

func (f *fixture) assertCleanup(t *testing.T) {
	t.Helper()
	if f.coordinator.IsClaimed(f.request.URL) {
		t.Fatal("claim must be released")
	}
	if _, err := os.Stat(f.request.Artifact.Path); !os.IsNotExist(err) {
		t.Fatal("artifact must be removed")
	}
	if _, err := os.Stat(f.request.Artifact.InfoPath); !os.IsNotExist(err) {
		t.Fatal("info sidecar must be removed")
	}
}

func editorState(t *testing.T, f *fixture) registry.Editor {
	t.Helper()
	editors, err := f.registry.List()
	if err != nil {
		t.Fatal(err)
	}
	return editors[0]
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t)

	if err := f.runner.Run(context.Background(), f.request); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f.assertCleanup(t)

	editor := editorState(t, f)
	if editor.Result != registry.ResultComplete {
		t.Fatalf("expected complete result, got %+v", editor)
	}
	if editor.Status != registry.StatusInUse {
		t.Fatalf("editor must stay in-use after completion, got %q", editor.Status)
	}

	entries := f.recorder.Entries()
	if len(entries) != 1 || entries[0].Outcome != runlog.OutcomeComplete {
		t.Fatalf("expected one complete record, got %+v", entries)
	}
	if f.fake.UploadedPath() != f.request.Artifact.Path {
		t.Fatalf("driver received wrong artifact %q", f.fake.UploadedPath())
	}
	if f.fake.RenamedTo() != "clip" {
		t.Fatalf("driver received wrong title %q", f.fake.RenamedTo())
	}
}

func TestRunStageTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.Stages.TranscodeTimeout = 5
	f.fake.PollsUntilDone = map[string]int{"transcode": 100}

	err := f.runner.Run(context.Background(), f.request)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	f.assertCleanup(t)

	editor := editorState(t, f)
	if editor.Result != registry.ResultError {
		t.Fatalf("expected error result, got %+v", editor)
	}
	if editor.ErrorType != "stage_timeout:transcode" {
		t.Fatalf("expected transcode timeout classification, got %q", editor.ErrorType)
	}

	entries := f.recorder.Entries()
	if len(entries) != 1 || entries[0].Outcome != runlog.OutcomeError {
		t.Fatalf("expected one error record, got %+v", entries)
	}
}

func TestRunTransformRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.fake.TransformFailures = 2
	f.fake.TransformErr = services.Wrap(services.ErrTransient, "transform", "apply", "busy", nil)

	if err := f.runner.Run(context.Background(), f.request); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := f.fake.CallCount("apply-transform"); got != 3 {
		t.Fatalf("expected three apply attempts, got %d", got)
	}
	f.assertCleanup(t)
}

func TestRunTransformRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.fake.TransformFailures = 100
	f.fake.TransformErr = services.Wrap(services.ErrTransient, "transform", "apply", "busy", nil)

	err := f.runner.Run(context.Background(), f.request)
	if !errors.Is(err, services.ErrTransform) {
		t.Fatalf("expected transform failure, got %v", err)
	}
	// Budget of 4 retries on top of the initial attempt.
	if got := f.fake.CallCount("apply-transform"); got != 5 {
		t.Fatalf("expected five apply attempts, got %d", got)
	}

	editor := editorState(t, f)
	if editor.ErrorType != "transform_failed" {
		t.Fatalf("expected transform_failed, got %q", editor.ErrorType)
	}
	f.assertCleanup(t)
}

func TestRunDriverDisconnection(t *testing.T) {
	f := newFixture(t)
	f.fake.FailStep = map[string]error{
		"transcode": services.Wrap(services.ErrDriverUnavailable, "", "check", "bridge unreachable", nil),
	}

	err := f.runner.Run(context.Background(), f.request)
	if !errors.Is(err, services.ErrDriverUnavailable) {
		t.Fatalf("expected driver failure, got %v", err)
	}

	editor := editorState(t, f)
	if editor.ErrorType != "driver_disconnected" {
		t.Fatalf("expected driver_disconnected, got %q", editor.ErrorType)
	}
	f.assertCleanup(t)
}

func TestRunHardTransformCheckFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.fake.FailStep = map[string]error{
		"transform": services.Wrap(services.ErrDriverUnavailable, "", "check", "bridge unreachable", nil),
	}

	err := f.runner.Run(context.Background(), f.request)
	if !errors.Is(err, services.ErrDriverUnavailable) {
		t.Fatalf("expected driver failure, got %v", err)
	}
	// A disconnected bridge is not a transient transform signal; the retry
	// budget must not be spent on it.
	if got := f.fake.CallCount("apply-transform"); got != 1 {
		t.Fatalf("expected a single apply attempt, got %d", got)
	}

	editor := editorState(t, f)
	if editor.ErrorType != "driver_disconnected" {
		t.Fatalf("expected driver_disconnected, got %q", editor.ErrorType)
	}
	f.assertCleanup(t)
}

func TestRunCleanupOnEveryFailurePath(t *testing.T) {
	steps := []string{
		"open", "workspace", "timeline", "upload", "upload-started",
		"transcode", "indexing", "media-ready", "place", "rename",
		"apply-transform", "transform", "save", "save-complete",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			f := newFixture(t)
			f.fake.FailStep = map[string]error{step: errors.New("injected failure")}

			if err := f.runner.Run(context.Background(), f.request); err == nil {
				t.Fatalf("expected failure injected at %q", step)
			}
			f.assertCleanup(t)

			editor := editorState(t, f)
			if editor.Result != registry.ResultError {
				t.Fatalf("expected error result, got %+v", editor)
			}
		})
	}
}

func TestRunSucceedsWhenRecorderFails(t *testing.T) {
	f := newFixture(t)
	f.recorder.fail = true

	if err := f.runner.Run(context.Background(), f.request); err != nil {
		t.Fatalf("recorder failure must not fail the run: %v", err)
	}
	f.assertCleanup(t)
}

func TestRunCloseFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.fake.FailStep = map[string]error{"close": errors.New("tab already gone")}

	if err := f.runner.Run(context.Background(), f.request); err != nil {
		t.Fatalf("close failure must not fail the run: %v", err)
	}
	editor := editorState(t, f)
	if editor.Result != registry.ResultComplete {
		t.Fatalf("expected complete result, got %+v", editor)
	}
}
