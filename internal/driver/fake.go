package driver

import (
	"context"
	"sync"
)

// Fake is a scripted Driver for tests. Condition checks succeed after a
// configurable number of polls; any step can be forced to fail. The zero
// value completes every step immediately.
type Fake struct {
	mu sync.Mutex

	// PollsUntilDone maps a check name (e.g. "transcode") to how many calls
	// return done=false before the check reports done.
	PollsUntilDone map[string]int
	// FailStep maps a step name to the error it should return.
	FailStep map[string]error
	// TransformFailures is how many ApplyTransform calls fail with the
	// supplied error before the action succeeds.
	TransformFailures int
	TransformErr      error

	calls        []string
	checkPolls   map[string]int
	applyCalls   int
	uploadedPath string
	renamedTo    string
}

// Calls returns the ordered step names invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times the named step ran.
func (f *Fake) CallCount(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == step {
			n++
		}
	}
	return n
}

func (f *Fake) record(step string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, step)
	if err, ok := f.FailStep[step]; ok {
		return err
	}
	return nil
}

func (f *Fake) poll(check string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, check)
	if err, ok := f.FailStep[check]; ok {
		return false, err
	}
	if f.checkPolls == nil {
		f.checkPolls = make(map[string]int)
	}
	f.checkPolls[check]++
	if remaining, ok := f.PollsUntilDone[check]; ok && f.checkPolls[check] <= remaining {
		return false, nil
	}
	return true, nil
}

func (f *Fake) OpenWorkspace(context.Context) error { return f.record("open") }

func (f *Fake) WorkspaceReady(context.Context) (bool, error) { return f.poll("workspace") }

func (f *Fake) TimelineReady(context.Context) (bool, error) { return f.poll("timeline") }

func (f *Fake) Upload(_ context.Context, path string) error {
	f.mu.Lock()
	f.uploadedPath = path
	f.mu.Unlock()
	return f.record("upload")
}

func (f *Fake) UploadStarted(context.Context) (bool, error) { return f.poll("upload-started") }

func (f *Fake) TranscodeComplete(context.Context) (bool, error) { return f.poll("transcode") }

func (f *Fake) IndexingComplete(context.Context) (bool, error) { return f.poll("indexing") }

func (f *Fake) MediaReady(context.Context) (bool, error) { return f.poll("media-ready") }

func (f *Fake) PlaceOnTimeline(context.Context) error { return f.record("place") }

func (f *Fake) Rename(_ context.Context, name string) error {
	f.mu.Lock()
	f.renamedTo = name
	f.mu.Unlock()
	return f.record("rename")
}

func (f *Fake) ApplyTransform(context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, "apply-transform")
	if err, ok := f.FailStep["apply-transform"]; ok {
		f.mu.Unlock()
		return err
	}
	f.applyCalls++
	if f.applyCalls <= f.TransformFailures {
		err := f.TransformErr
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) TransformComplete(context.Context) (bool, error) { return f.poll("transform") }

func (f *Fake) Save(context.Context) error { return f.record("save") }

func (f *Fake) SaveComplete(context.Context) (bool, error) { return f.poll("save-complete") }

func (f *Fake) Close(context.Context) error { return f.record("close") }

// UploadedPath returns the artifact path passed to Upload.
func (f *Fake) UploadedPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadedPath
}

// RenamedTo returns the name passed to Rename.
func (f *Fake) RenamedTo() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renamedTo
}

var _ Driver = (*Fake)(nil)
