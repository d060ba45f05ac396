// Package config loads, normalizes, and validates clipflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the daemon and CLI need: shared data-file locations, scheduler gate
// intervals, pipeline stage ceilings, and external tool settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and validated intervals.
package config
