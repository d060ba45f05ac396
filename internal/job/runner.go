package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipflow/internal/claims"
	"clipflow/internal/config"
	"clipflow/internal/download"
	"clipflow/internal/driver"
	"clipflow/internal/logging"
	"clipflow/internal/registry"
	"clipflow/internal/runlog"
	"clipflow/internal/services"
)

// State names one phase of the pipeline.
type State string

const (
	StateReserved              State = "reserved"
	StateLoading               State = "loading"
	StateUploading             State = "uploading"
	StateAwaitingTranscode     State = "awaiting-transcode"
	StateAwaitingIndexing      State = "awaiting-indexing"
	StatePlacedOnTimeline      State = "placed-on-timeline"
	StateRenamed               State = "renamed"
	StateTransformApplied      State = "transform-applied"
	StateAwaitingTransformSave State = "awaiting-transform-save"
	StateFinalizing            State = "finalizing"
	StateCompleted             State = "completed"
	StateFailed                State = "failed"
)

// Recorder receives finished-run records. Implemented by runlog.Store; nil
// disables recording.
type Recorder interface {
	Record(ctx context.Context, entry runlog.Entry) error
}

// Request binds one claimed work item to one reserved editor.
type Request struct {
	ID       string
	URL      string
	Editor   registry.Editor
	Artifact *download.Result
	Driver   driver.Driver
}

// Runner executes pipeline runs.
type Runner struct {
	cfg      *config.Config
	registry *registry.Store
	claims   *claims.Coordinator
	recorder Recorder
	logger   *slog.Logger
	clock    Clock
}

// NewRunner builds a runner. recorder may be nil.
func NewRunner(cfg *config.Config, reg *registry.Store, coordinator *claims.Coordinator, recorder Recorder, logger *slog.Logger, clock Clock) *Runner {
	if clock == nil {
		clock = NewClock()
	}
	return &Runner{
		cfg:      cfg,
		registry: reg,
		claims:   coordinator,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "job"),
		clock:    clock,
	}
}

// Run drives req to a terminal state and returns the stage error on failure.
func (r *Runner) Run(ctx context.Context, req Request) (err error) {
	ctx = services.WithJobID(ctx, req.ID)
	ctx = services.WithEditor(ctx, req.Editor.URL)
	log := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldURL, req.URL))

	started := r.clock.Now()
	state := StateReserved

	// The single cleanup guard: artifacts and the claim are dealt with on
	// every exit path exactly once.
	defer func() {
		if removeErr := download.RemoveArtifacts(req.Artifact); removeErr != nil {
			log.Warn("failed to remove artifacts", logging.Error(removeErr))
		}
		if releaseErr := r.claims.Release(req.URL); releaseErr != nil {
			log.Warn("failed to release claim", logging.Error(releaseErr))
		}
	}()

	defer func() {
		if err == nil {
			return
		}
		state = StateFailed
		errorType := services.Classify(err, stageForClassification(err))
		log.Error("run failed",
			logging.String("error_type", errorType),
			logging.Duration("elapsed", r.clock.Now().Sub(started)),
			logging.Error(err))
		if completeErr := r.registry.Complete(req.Editor.URL, registry.ResultError, errorType); completeErr != nil {
			log.Warn("failed to record editor error", logging.Error(completeErr))
		}
		r.record(ctx, req, runlog.OutcomeError, errorType, r.clock.Now().Sub(started))
	}()

	advance := func(next State) {
		state = next
		log.Info("stage entered", logging.String("state", string(state)))
	}

	advance(StateLoading)
	if err = r.step(ctx, "load", "open workspace", req.Driver.OpenWorkspace); err != nil {
		return err
	}
	if err = r.pollUntil(ctx, "load", r.stage(r.cfg.Stages.WorkspaceLoadTimeout), req.Driver.WorkspaceReady); err != nil {
		return err
	}
	if err = r.pollUntil(ctx, "timeline", r.stage(r.cfg.Stages.TimelineReadyTimeout), req.Driver.TimelineReady); err != nil {
		return err
	}

	advance(StateUploading)
	if err = r.step(ctx, "upload", "submit artifact", func(ctx context.Context) error {
		return req.Driver.Upload(ctx, req.Artifact.Path)
	}); err != nil {
		return err
	}
	if err = r.pollUntil(ctx, "upload", r.stage(r.cfg.Stages.UploadStartTimeout), req.Driver.UploadStarted); err != nil {
		return err
	}

	advance(StateAwaitingTranscode)
	if err = r.pollUntil(ctx, "transcode", r.stage(r.cfg.Stages.TranscodeTimeout), req.Driver.TranscodeComplete); err != nil {
		return err
	}

	advance(StateAwaitingIndexing)
	if err = r.pollUntil(ctx, "indexing", r.stage(r.cfg.Stages.IndexingTimeout), req.Driver.IndexingComplete); err != nil {
		return err
	}
	if err = r.pollUntil(ctx, "media", r.stage(r.cfg.Stages.MediaReadyTimeout), req.Driver.MediaReady); err != nil {
		return err
	}

	advance(StatePlacedOnTimeline)
	if err = r.step(ctx, "timeline", "place media", req.Driver.PlaceOnTimeline); err != nil {
		return err
	}

	advance(StateRenamed)
	if err = r.step(ctx, "rename", "set title", func(ctx context.Context) error {
		return req.Driver.Rename(ctx, req.Artifact.Title)
	}); err != nil {
		return err
	}

	advance(StateTransformApplied)
	if err = r.applyTransform(ctx, log, req.Driver); err != nil {
		return err
	}

	advance(StateAwaitingTransformSave)
	if err = r.step(ctx, "save", "trigger save", req.Driver.Save); err != nil {
		return err
	}
	if err = r.pollUntil(ctx, "save", r.stage(r.cfg.Stages.SaveTimeout), req.Driver.SaveComplete); err != nil {
		return err
	}

	advance(StateFinalizing)
	if sleepErr := r.clock.Sleep(ctx, r.stage(r.cfg.Stages.FinalizeDelay)); sleepErr != nil {
		err = sleepErr
		return err
	}
	if closeErr := req.Driver.Close(ctx); closeErr != nil {
		// The work is already saved; a teardown failure only costs a
		// browser tab.
		log.Warn("session close failed", logging.Error(closeErr))
	}

	state = StateCompleted
	elapsed := r.clock.Now().Sub(started)
	log.Info("run completed", logging.Duration("elapsed", elapsed))

	if completeErr := r.registry.Complete(req.Editor.URL, registry.ResultComplete, ""); completeErr != nil {
		log.Warn("failed to record editor completion", logging.Error(completeErr))
	}
	r.record(ctx, req, runlog.OutcomeComplete, "", elapsed)
	return nil
}

// applyTransform issues the transform and waits for it, retrying the action
// in place when the bridge reports a transient failure.
func (r *Runner) applyTransform(ctx context.Context, log *slog.Logger, drv driver.Driver) error {
	budget := r.cfg.Stages.TransformRetries
	for attempt := 0; ; attempt++ {
		err := drv.ApplyTransform(ctx)
		if err == nil {
			err = r.pollUntil(ctx, "transform", r.stage(r.cfg.Stages.TransformTimeout), drv.TransformComplete)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, services.ErrTransient) && attempt < budget {
			log.Warn("transform retry",
				logging.Int("attempt", attempt+1),
				logging.Int("budget", budget),
				logging.Error(err))
			continue
		}
		if errors.Is(err, services.ErrTransient) {
			return services.Wrap(services.ErrTransform, "transform", "apply", "retries exhausted", err)
		}
		return err
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func stageForClassification(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}

// step runs one driver action, tagging failures with the stage name.
func (r *Runner) step(ctx context.Context, stage, operation string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		if errors.Is(err, services.ErrTransient) {
			// Preserve the transient marker for the transform retry loop.
			return &stageError{stage: stage, err: err}
		}
		return &stageError{stage: stage, err: services.Wrap(nil, stage, operation, "", err)}
	}
	return nil
}

// pollUntil checks a condition until it holds or the stage ceiling elapses.
func (r *Runner) pollUntil(ctx context.Context, stage string, ceiling time.Duration, check func(context.Context) (bool, error)) error {
	interval := r.stage(r.cfg.Stages.PollInterval)
	deadline := r.clock.Now().Add(ceiling)

	for {
		done, err := check(ctx)
		if err != nil {
			if errors.Is(err, services.ErrTransient) {
				return &stageError{stage: stage, err: err}
			}
			return &stageError{stage: stage, err: services.Wrap(nil, stage, "check", "", err)}
		}
		if done {
			return nil
		}
		if !r.clock.Now().Add(interval).Before(deadline) {
			return &stageError{stage: stage, err: services.Wrap(services.ErrTimeout, stage, "wait", "stage ceiling exceeded", nil)}
		}
		if err := r.clock.Sleep(ctx, interval); err != nil {
			return &stageError{stage: stage, err: err}
		}
	}
}

func (r *Runner) stage(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (r *Runner) record(ctx context.Context, req Request, outcome, errorType string, elapsed time.Duration) {
	if r.recorder == nil || !r.cfg.RunLog.Enabled {
		return
	}
	entry := runlog.Entry{
		URL:       req.URL,
		EditorURL: req.Editor.URL,
		Outcome:   outcome,
		ErrorType: errorType,
		Duration:  elapsed,
	}
	if req.Artifact != nil {
		entry.Title = req.Artifact.Title
	}
	if err := r.recorder.Record(ctx, entry); err != nil {
		logging.WithContext(ctx, r.logger).Warn("failed to record run", logging.Error(err))
	}
}
