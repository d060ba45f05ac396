// Package job drives one claimed work item through the editor pipeline.
//
// A run is a linear state machine; every wait-for-condition stage is a
// bounded poll with a configurable ceiling and interval, driven through an
// injectable clock so tests never sleep. The transform stage carries its own
// in-place retry budget for the bridge's transient failure signal.
//
// Cleanup (artifact deletion, claim release) runs on every exit path via one
// deferred guard. On success the runner records the run, marks the editor
// complete, and returns nil; on failure it classifies the error, marks the
// editor errored, and re-raises so the scheduler's completion handler can
// decide queue retention.
package job
