package ipc

// StartRequest starts queue processing.
type StartRequest struct{}

// StartResponse indicates whether processing was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops queue processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and scheduler status.
type StatusResponse struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	SchedulerRunning bool   `json:"scheduler_running"`
	IsProcessing     bool   `json:"isProcessing"`
	CurrentItem      string `json:"currentItem,omitempty"`
	QueueLength      int    `json:"queueLength"`
	EditorsAvailable int    `json:"editorsAvailable"`
	LastError        string `json:"lastError,omitempty"`
	LockPath         string `json:"lock_path"`
	QueuePath        string `json:"queue_path"`
	RegistryPath     string `json:"registry_path"`
}

// QueueListRequest fetches the queue snapshot.
type QueueListRequest struct{}

// QueueListResponse contains queued URLs in order.
type QueueListResponse struct {
	Items []string `json:"items"`
}

// QueueAddRequest appends a URL to the queue.
type QueueAddRequest struct {
	URL string `json:"url"`
}

// QueueAddResponse reports the append outcome.
type QueueAddResponse struct {
	Added bool `json:"added"`
}

// QueueRemoveRequest removes a URL from the queue.
type QueueRemoveRequest struct {
	URL string `json:"url"`
}

// QueueRemoveResponse reports the removal outcome.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SweepClaimsRequest reclaims stale claim markers now.
type SweepClaimsRequest struct{}

// SweepClaimsResponse reports how many markers were reclaimed.
type SweepClaimsResponse struct {
	Removed int `json:"removed"`
}

// RunLogTailRequest fetches the newest finished-run records.
type RunLogTailRequest struct {
	Limit int `json:"limit"`
}

// RunRecord is one finished-run row.
type RunRecord struct {
	URL             string  `json:"url"`
	Title           string  `json:"title,omitempty"`
	EditorURL       string  `json:"editor_url,omitempty"`
	Outcome         string  `json:"outcome"`
	ErrorType       string  `json:"error_type,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAt       string  `json:"created_at"`
}

// RunLogTailResponse returns finished-run records, newest first.
type RunLogTailResponse struct {
	Records []RunRecord `json:"records"`
}
