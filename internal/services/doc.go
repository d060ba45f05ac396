// Package services defines shared utilities consumed by the job pipeline and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers, stage names, editor IDs,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures for
//     consistent classification into reportable failure categories.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across stages.
package services
