// Package queue persists pending work items in a flat text file and exposes
// helpers for driving their lifecycle.
//
// The backing file holds one source URL per line. Blank lines and lines that
// do not start with "http" are ignored on read, and trailing periods are
// stripped so hand-edited entries survive stray punctuation. Completed items
// are appended to a separate timestamped history file; items that exhaust
// their attempt budget move to a dead-letter file.
//
// Every operation reads or rewrites the file directly with no in-memory
// cache, so each call reflects the latest on-disk content. The file is shared
// mutable state across processes; rewrites are atomic (temp plus rename) but
// concurrent writers are last-writer-wins.
package queue
