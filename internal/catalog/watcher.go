package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the user catalog file whenever it changes on disk
type Watcher struct {
	catalog *Catalog
	path    string
	logger  *zap.Logger
	// OnReload, when set, is called after every reload attempt
	OnReload func(error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWatcher(catalog *Catalog, path string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{catalog: catalog, path: filepath.Clean(path), logger: logger}
}

// Start loads the file once and then watches its directory, so the file may
// be created, replaced or removed while running
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("catalog watcher already running")
	}

	if err := w.catalog.LoadFile(w.path); err != nil {
		w.logger.Warn("Failed to load user catalog", zap.String("path", w.path), zap.Error(err))
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx, fw)

	w.logger.Info("Watching user catalog", zap.String("path", w.path))
	return nil
}

// Stop ends the watch loop and waits for it
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.watcher.Close()
	w.watcher = nil
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Catalog watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	err := w.catalog.LoadFile(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload user catalog", zap.String("path", w.path), zap.Error(err))
	} else {
		w.logger.Info("User catalog reloaded", zap.Int("medicines", w.catalog.Len()))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
