// Package watcher turns filesystem activity under the data folder into
// debounced change notifications.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
)

// DefaultDebounce is the quiet window used when Config.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Filter decides which paths are relevant. *changes.Detector implements it.
type Filter interface {
	// Accepts reports whether a file path is a tracked source document.
	Accepts(path string) bool

	// SkipDir reports whether a directory should not be watched.
	SkipDir(path string) bool
}

// Config is the configuration for a Watcher.
type Config struct {
	Root     string
	Debounce time.Duration
	Filter   Filter
	Logger   *slog.Logger
}

// Watcher watches Root recursively and calls onChange once per burst of
// relevant events, after Debounce has passed without further events.
type Watcher struct {
	root     string
	debounce time.Duration
	filter   Filter
	onChange func()
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	dirs   map[string]bool
	timer  *time.Timer
	closed bool
}

// New creates a Watcher. Nothing is watched until Run.
func New(c Config, onChange func()) (*Watcher, error) {
	if c.Filter == nil {
		return nil, errors.New("watcher filter is required")
	}
	if onChange == nil {
		return nil, errors.New("watcher callback is required")
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:     root,
		debounce: c.Debounce,
		filter:   c.Filter,
		onChange: onChange,
		logger:   c.Logger,
		fsw:      fsw,
		dirs:     make(map[string]bool),
	}, nil
}

// Run watches until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("watching data folder", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				w.stopTimer()
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.stopTimer()
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops watching and cancels any pending notification.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != w.root && w.filter.SkipDir(path) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("could not watch directory", "path", path, "error", err)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.filter.SkipDir(path) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("could not watch new directory", "path", path, "error", err)
			}
			// Files may have landed before the watch was added.
			w.schedule(path)
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		wasDir := w.dirs[path]
		delete(w.dirs, path)
		w.mu.Unlock()
		if wasDir {
			w.schedule(path)
			return
		}
	}

	if !w.filter.Accepts(path) {
		return
	}
	w.schedule(path)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.logger.Debug("change observed", "path", path)

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	w.onChange()
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
