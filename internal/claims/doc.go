// Package claims provides filesystem-based mutual exclusion over work items.
//
// Each in-flight claim is a marker file in the claims directory, named by the
// SHA-256 hex of the item URL. Creation uses exclusive-create semantics, so
// exactly one of any number of competing processes wins a given item. Marker
// bodies carry the URL, creation time, and owner PID for the stale sweep and
// for debugging; only the timestamp line is machine-parsed.
//
// A crashed worker leaves its marker behind, so a sweep runs at startup and
// on a fixed interval, reclaiming markers older than the TTL.
package claims
