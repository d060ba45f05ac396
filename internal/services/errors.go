package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
	ErrTransient         = errors.New("transient failure")
	ErrDriverUnavailable = errors.New("driver unavailable")
	ErrDownload          = errors.New("download failure")
	ErrTransform         = errors.New("transform failure")
)

// Wrap builds an error message that includes stage context. marker tags the
// error with one of the exported sentinels for later classification; a nil
// marker leaves the error untagged so hard failures never masquerade as
// transient ones.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	switch {
	case marker != nil && err != nil:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	case marker != nil:
		return fmt.Errorf("%w: %s", marker, detail)
	case err != nil:
		return fmt.Errorf("%s: %w", detail, err)
	default:
		return errors.New(detail)
	}
}

// Classify maps a pipeline error to the category string recorded in the run
// log and surfaced over IPC. Stage names a pipeline stage for timeout
// attribution and may be empty.
func Classify(err error, stage string) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrDownload):
		return "download_failed"
	case errors.Is(err, ErrTransform):
		return "transform_failed"
	case errors.Is(err, ErrDriverUnavailable):
		return "driver_disconnected"
	case errors.Is(err, ErrTimeout):
		if stage = strings.TrimSpace(stage); stage != "" {
			return "stage_timeout:" + stage
		}
		return "stage_timeout"
	}

	// Automation failures surface as free-form messages from the bridge, so
	// fall back to matching the phrases the browser driver emits.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "target closed"), strings.Contains(msg, "session closed"):
		return "target_closed"
	case strings.Contains(msg, "detached"):
		return "dom_detached"
	case strings.Contains(msg, "navigation timeout"):
		return "navigation_timeout"
	case strings.Contains(msg, "browser") && strings.Contains(msg, "launch"):
		return "browser_launch_failed"
	}
	return "unknown"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
