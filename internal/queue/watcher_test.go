package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"clipflow/internal/queue"
	"clipflow/internal/testsupport"
)

func TestWatcherFiresOnChange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := queue.NewStore(cfg)
	if _, err := store.List(); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	watcher := queue.NewWatcher(store.Path(), 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go watcher.Run(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	// Let the watcher record the initial stat before mutating.
	time.Sleep(50 * time.Millisecond)
	if err := store.Add("http://example.com/v1"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("watcher did not observe queue change")
	}
}

func TestWatcherIgnoresMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.QueueFile()
	_ = os.Remove(path)

	fired := make(chan struct{}, 1)
	watcher := queue.NewWatcher(path, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go watcher.Run(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	<-ctx.Done()
	select {
	case <-fired:
		t.Fatal("watcher should not fire for a missing file")
	default:
	}
}
