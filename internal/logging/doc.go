// Package logging builds the slog loggers used across clipflow.
//
// It offers a human-oriented console handler for interactive use and a
// JSON handler for machine consumption, plus small helpers for attaching
// standardized attributes and deriving per-job loggers from a context.
package logging
