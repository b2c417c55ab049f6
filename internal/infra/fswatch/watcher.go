// Package fswatch notifies callbacks about files written into watched
// directories.
package fswatch

import (
	"context"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/metackpt/internal/telemetry/logger"
)

// ErrStopped is returned by Run after Stop.
var ErrStopped = errors.New("fswatch: stopped")

// Watcher watches directories for written or created files.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(string)
	filter    func(string) bool
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	log       logger.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithFilter drops events whose path does not satisfy keep.
func WithFilter(keep func(path string) bool) Option {
	return func(w *Watcher) {
		w.filter = keep
	}
}

// New creates a watcher. Call Stop to release it.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add watches dir. Files renamed into dir are reported as creates.
func (w *Watcher) Add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		w.log.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}
	w.log.Debug("watching directory for changes", "path", dir)
	return nil
}

// OnChange registers a callback receiving the path of each changed file.
// Callbacks run on the Run goroutine.
func (w *Watcher) OnChange(cb func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Run dispatches events until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Debug("watcher started")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrStopped
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if w.filter != nil && !w.filter(event.Name) {
				continue
			}
			w.log.Debug("file changed", "file", event.Name, "op", event.Op.String())
			w.notify(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrStopped
			}
			w.log.Error("watcher error", "error", err)
		case <-w.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop closes the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.log.Debug("watcher stopped")
	})
	return err
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(path)
	}
}
