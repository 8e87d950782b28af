// Package watch drives incremental rebuilds from filesystem events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceMs is used when Options.DebounceMs is zero.
const DefaultDebounceMs = 100

// Handler reacts to settled file events. Calls never overlap.
type Handler interface {
	FileChanged(path string) error
	FileRemoved(path string) error
}

// HandlerFuncs adapts two functions to Handler. Nil functions are no-ops.
type HandlerFuncs struct {
	Changed func(path string) error
	Removed func(path string) error
}

func (h HandlerFuncs) FileChanged(path string) error {
	if h.Changed == nil {
		return nil
	}
	return h.Changed(path)
}

func (h HandlerFuncs) FileRemoved(path string) error {
	if h.Removed == nil {
		return nil
	}
	return h.Removed(path)
}

// Options configures a Watcher.
type Options struct {
	// DebounceMs groups bursts of events on one file.
	DebounceMs int
	// Filter selects the files whose events reach the handler. Nil
	// accepts every file.
	Filter func(path string) bool
	// IgnoreDirs are absolute directories that are never watched, such as
	// the output directory.
	IgnoreDirs []string
	// ExtraDirs are absolute directories watched in addition to the root,
	// even when they lie inside an ignored directory or node_modules.
	ExtraDirs []string
}

// Watcher watches a directory tree and calls its handler for created,
// written and removed files.
//
// **Features:**
//   - Debouncing - a burst of writes to one file triggers one rebuild
//   - Serialized - handler calls run one at a time, in event order per file
//   - Recursive - directories created after Start are watched too
//
// **Usage:**
//
//	w, err := watch.New(opts, handler, logger)
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx, "/path/to/workspace")
type Watcher struct {
	watcher *fsnotify.Watcher
	handler Handler
	logger  *slog.Logger
	options Options

	// Debouncing
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// handleMu serializes handler calls.
	handleMu sync.Mutex

	// Lifecycle
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// New creates a Watcher.
func New(options Options, handler Handler, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if options.DebounceMs <= 0 {
		options.DebounceMs = DefaultDebounceMs
	}
	if logger == nil {
		logger = slog.Default()
	}
	for i, dir := range options.IgnoreDirs {
		options.IgnoreDirs[i] = filepath.Clean(dir)
	}
	for i, dir := range options.ExtraDirs {
		options.ExtraDirs[i] = filepath.Clean(dir)
	}

	return &Watcher{
		watcher:        watcher,
		handler:        handler,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching rootPath and every directory below it, plus the
// extra directories.
func (w *Watcher) Start(rootPath string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	w.mu.Unlock()

	if err := w.addTree(rootPath); err != nil {
		return err
	}
	for _, dir := range w.options.ExtraDirs {
		if err := w.addTree(dir); err != nil {
			w.logger.Warn("failed to watch directory", "path", dir, "error", err)
		}
	}
	w.logger.Info("watching for changes", "root", rootPath, "debounce_ms", w.options.DebounceMs)

	go w.eventLoop()
	return nil
}

// Run watches rootPath until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, rootPath string) error {
	if err := w.Start(rootPath); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Stop stops the watcher and cancels pending events. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.logger.Debug("file watcher stopped")
	return err
}

// Pending returns the number of debounced events not yet handled.
func (w *Watcher) Pending() int {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	return len(w.debounceTimers)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("failed to watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("failed to watch %s: %w", root, err)
			}
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.shouldIgnore(path) {
		return
	}

	if event.Op.Has(fsnotify.Create) && isDir(path) {
		if err := w.addTree(path); err != nil {
			w.logger.Warn("failed to watch new directory", "path", path, "error", err)
		}
		return
	}
	if w.options.Filter != nil && !w.options.Filter(path) {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)
	switch {
	case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create):
		w.debounce(path)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.cancel(path)
		w.call("remove", path, w.handler.FileRemoved)
	}
}

// debounce schedules a change after the debounce delay. Only the last of
// several events within the window fires.
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(
		time.Duration(w.options.DebounceMs)*time.Millisecond,
		func() {
			w.debounceMu.Lock()
			delete(w.debounceTimers, path)
			w.debounceMu.Unlock()

			w.call("change", path, w.handler.FileChanged)
		},
	)
}

func (w *Watcher) cancel(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
		delete(w.debounceTimers, path)
	}
}

func (w *Watcher) call(op, path string, fn func(string) error) {
	w.handleMu.Lock()
	defer w.handleMu.Unlock()

	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	if err := fn(path); err != nil {
		w.logger.Error("failed to handle file event", "op", op, "file", path, "error", err)
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range w.options.ExtraDirs {
		if isWithin(dir, clean) {
			return false
		}
	}
	switch filepath.Base(path) {
	case "node_modules", ".git":
		return true
	}
	for _, dir := range w.options.IgnoreDirs {
		if isWithin(dir, clean) {
			return true
		}
	}
	return false
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
