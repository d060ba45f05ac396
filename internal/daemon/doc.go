// Package daemon hosts the long-running clipflow services behind a
// single-instance file lock: the dispatch scheduler, the stale-claim
// sweeper, and the queue file watcher. It is the target the IPC layer
// delegates control operations to.
package daemon
