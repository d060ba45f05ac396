// Package scheduler runs the batch dispatch loop.
//
// One restartable loop walks a fixed gate sequence each cycle: concurrency
// cap (with a recently-started allowance covering registry propagation lag),
// editor availability, queue contents, launch pacing, then a claim scan over
// the queue snapshot. A successful claim reserves an editor and launches the
// job asynchronously; the loop keeps polling while jobs run. Any error or
// panic escaping a cycle is logged and the loop restarts after a cooldown.
// The loop never terminates on its own.
package scheduler
