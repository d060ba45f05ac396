package driver

import "context"

// Driver drives one editor session through the pipeline. Condition checks
// return (false, nil) while the external system is still working; the job
// runner owns the polling cadence and ceilings.
type Driver interface {
	// OpenWorkspace navigates the session to the editing workspace.
	OpenWorkspace(ctx context.Context) error
	// WorkspaceReady reports whether the workspace finished loading.
	WorkspaceReady(ctx context.Context) (bool, error)
	// TimelineReady reports whether the editing timeline is interactive.
	TimelineReady(ctx context.Context) (bool, error)
	// Upload submits the local artifact to the editor.
	Upload(ctx context.Context, path string) error
	// UploadStarted reports whether the editor acknowledged the upload.
	UploadStarted(ctx context.Context) (bool, error)
	// TranscodeComplete reports whether server-side transcoding finished.
	TranscodeComplete(ctx context.Context) (bool, error)
	// IndexingComplete reports whether media indexing finished.
	IndexingComplete(ctx context.Context) (bool, error)
	// MediaReady reports whether the uploaded media is usable in the editor.
	MediaReady(ctx context.Context) (bool, error)
	// PlaceOnTimeline drops the uploaded media onto the timeline.
	PlaceOnTimeline(ctx context.Context) error
	// Rename sets the working title of the clip.
	Rename(ctx context.Context, name string) error
	// ApplyTransform triggers the automated transform. A transient failure
	// signal from the bridge is returned as services.ErrTransient so the
	// caller can re-issue the action.
	ApplyTransform(ctx context.Context) error
	// TransformComplete reports whether the transform finished.
	TransformComplete(ctx context.Context) (bool, error)
	// Save triggers a project save.
	Save(ctx context.Context) error
	// SaveComplete reports whether the save finished.
	SaveComplete(ctx context.Context) (bool, error)
	// Close tears down the editing session.
	Close(ctx context.Context) error
}

// Factory builds a Driver bound to one editor address. The scheduler holds a
// factory so tests can substitute scripted fakes per dispatch.
type Factory func(editorURL string) Driver
