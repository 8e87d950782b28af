package workspace

import (
	"context"
	"path/filepath"

	"github.com/gnana997/esmpack/pkg/source"
	"github.com/gnana997/esmpack/pkg/watch"
)

// Watch keeps the output current until ctx is cancelled: changed sources
// are re-transformed, changed resources re-copied, and removed files
// deleted from the output.
func (w *Workspace) Watch(ctx context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}

	watcher, err := watch.New(watch.Options{
		DebounceMs: w.cfg.Watch.DebounceMs,
		Filter: func(path string) bool {
			return w.isResource(path) || w.isSource(path)
		},
		IgnoreDirs: []string{w.outDir, w.lookupDir},
		ExtraDirs:  w.resourceDirs(),
	}, w.Handler(), w.logger)
	if err != nil {
		return err
	}
	return watcher.Run(ctx, w.cwd)
}

// resourceDirs lists the directories of resources that the workspace tree
// watch skips, typically files inside node_modules.
func (w *Workspace) resourceDirs() []string {
	if w.cfg.Resources.IsEmpty() {
		return nil
	}
	files, err := source.Enumerate(w.cwd, w.resourceInput())
	if err != nil {
		w.logger.Warn("failed to list resources to watch", "error", err)
		return nil
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, file := range files {
		dir := filepath.Dir(file)
		if seen[dir] || !inLookupDir(w.cwd, dir) {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// Handler returns the watch handler that feeds file events into the
// workspace.
func (w *Workspace) Handler() watch.Handler {
	return watch.HandlerFuncs{
		Changed: func(path string) error {
			_, err := w.TransformFile(path)
			return err
		},
		Removed: w.RemoveFile,
	}
}
