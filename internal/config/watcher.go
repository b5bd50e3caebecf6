package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/dropzone/internal/logging"
)

// Watcher watches a configuration file and notifies typed handlers when
// it changes. The file is loaded fresh on each change, so handlers never
// receive stale data. The parent directory is watched, which also catches
// editors that save by renaming a temp file over the original.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	handlers []func(T)
	onError  func(error)
	mu       sync.RWMutex
	current  T
	loaded   bool
	watcher  *fsnotify.Watcher
	logger   logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets the debounce duration for config changes.
// Default is 1500ms.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for config load errors.
// If not set, errors are only logged.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewWatcher creates a typed configuration file watcher.
func NewWatcher[T any](
	path string,
	loader func(path string) (T, error),
	logger logging.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		debounce: 1500 * time.Millisecond,
		loader:   loader,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler to be called when config changes.
// Returns an unsubscribe function to remove the handler.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	idx := len(w.handlers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < len(w.handlers) {
			w.handlers[idx] = nil
		}
	}
}

// Current returns the most recently loaded config and whether one was
// loaded successfully.
func (w *Watcher[T]) Current() (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.loaded
}

// Start loads the file once and begins watching it for changes. A missing
// or invalid file at start is reported through the error handler but does
// not prevent watching.
func (w *Watcher[T]) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := watcher.Add(filepath.Dir(w.path)); addErr != nil {
		watcher.Close()
		return addErr
	}
	w.watcher = watcher

	w.load()
	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop stops watching and cleans up resources.
func (w *Watcher[T]) Stop() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher[T]) watch() {
	defer close(w.done)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("Config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Config file change detected", "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			w.logger.Info("Config file changed, reloading")
			if w.load() {
				w.notify()
			}
			timerC = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) load() bool {
	config, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Failed to load config", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return false
	}
	w.mu.Lock()
	w.current = config
	w.loaded = true
	w.mu.Unlock()
	return true
}

// notify hands the same snapshot to every handler.
func (w *Watcher[T]) notify() {
	w.mu.RLock()
	config := w.current
	handlers := make([]func(T), 0, len(w.handlers))
	for _, h := range w.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(config)
	}
}
