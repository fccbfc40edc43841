// Package watch reconverts a source image each time it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is the debounce interval applied to successive events.
const DefaultDelay = 500 * time.Millisecond

// Handler is invoked with the path of the changed file.
type Handler func(path string) error

// Watcher monitors a single file for changes.
type Watcher struct {
	// Delay is the debounce interval, successive events inside it trigger a single call.
	Delay time.Duration

	path    string
	handler Handler
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	// runMu serializes the handler calls.
	runMu sync.Mutex
}

// New creates a watcher for path. The parent directory is watched,
// so editors replacing the file through a rename are supported as well.
func New(path string, handler Handler) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		Delay:   DefaultDelay,
		path:    abs,
		handler: handler,
		watcher: fsWatcher,
	}, nil
}

// Run processes the file events until the context is cancelled or the watcher closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// schedule debounces the handler invocation.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Delay, func() {
		w.runMu.Lock()
		defer w.runMu.Unlock()
		if err := w.handler(w.path); err != nil {
			log.Printf("Conversion of %s failed: %v", filepath.Base(w.path), err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops watching the file system.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
