package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last file event before a
// reload fires. Editors and config management tools write in bursts.
const defaultDebounce = 200 * time.Millisecond

// Watcher hot-reloads the catalog when its file changes.
//
// The parent directory is watched rather than the file itself: most tools
// replace config files by rename, which would silently detach a watch on
// the file's inode.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the catalog's file. Call Watch to start.
func NewWatcher(c *Catalog, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		catalog:  c,
		watcher:  fsw,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called. A reload that fails leaves the previous catalog serving;
// the error is logged, never fatal.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer close(w.doneCh)

	dir := filepath.Dir(w.catalog.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching catalog directory %q: %w", dir, err)
	}

	w.logger.Info("catalog watcher started",
		"path", w.catalog.path,
		"debounce_ms", w.debounce.Milliseconds())

	target := filepath.Clean(w.catalog.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching despite transient errors.
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// Stop terminates Watch and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// scheduleReload (re)arms the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.catalog.Load(); err != nil {
			w.logger.Error("catalog reload rejected, previous catalog still serving", "error", err)
			return
		}
		w.logger.Info("catalog reloaded", "models", w.catalog.Len())
	})
}
