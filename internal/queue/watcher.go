package queue

import (
	"context"
	"log/slog"
	"os"
	"time"

	"clipflow/internal/logging"
)

// Watcher polls the queue file for modification-time or size changes and
// invokes a callback when it observes one. Polling keeps the behaviour
// identical whether the file is replaced atomically or appended in place.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher builds a watcher over path firing at the supplied interval.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "queue-watcher"),
	}
}

// Run blocks until ctx is cancelled, calling notify each time the queue file
// changes. A missing file is treated as an unchanged empty queue.
func (w *Watcher) Run(ctx context.Context, notify func()) {
	var lastMod time.Time
	var lastSize int64
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
		lastSize = info.Size()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("watching queue file", logging.String("path", w.path), logging.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().Equal(lastMod) && info.Size() == lastSize {
				continue
			}
			lastMod = info.ModTime()
			lastSize = info.Size()
			w.logger.Debug("queue file changed", logging.Int64("size", info.Size()))
			if notify != nil {
				notify()
			}
		}
	}
}
