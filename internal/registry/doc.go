// Package registry persists the editor worker pool in a JSON file and
// mediates reservations against it.
//
// The file holds either a bare array of editor records or an object with an
// "editors" array plus optional pool-wide settings; whichever shape is read
// is preserved on rewrite. Every mutation is a whole-file read-modify-rewrite
// with no OS-level lock, so concurrent writers are last-writer-wins. The
// atomic rewrite only guarantees readers never see a torn file.
package registry
