// Package driver abstracts the browser-automation session behind one
// interface method per pipeline interaction.
//
// The production implementation is an HTTP client speaking to an automation
// bridge process colocated with the editor's browser session. Transient HTTP
// failures are retried with exponential backoff; a bridge that stays
// unreachable surfaces as services.ErrDriverUnavailable so the failure is
// classified as infrastructure rather than content.
package driver
