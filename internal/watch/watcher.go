// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RestageFunc re-stages the given repository-relative paths.
type RestageFunc func(ctx context.Context, paths []string) error

// Watcher restages a fixed set of files whenever they are written.
type Watcher struct {
	root    string
	paths   map[string]struct{}
	restage RestageFunc
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// New watches the parent directories of paths, which are slash-separated
// and relative to root.
func New(root string, paths []string, restage RestageFunc, logger *zap.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		paths:   make(map[string]struct{}, len(paths)),
		restage: restage,
		watcher: fw,
		logger:  logger,
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		w.paths[filepath.ToSlash(p)] = struct{}{}
		dirs[filepath.Dir(filepath.Join(root, filepath.FromSlash(p)))] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Paths returns the watched paths in sorted order.
func (w *Watcher) Paths() []string {
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run processes file events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if _, ok := w.paths[rel]; !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		if err := w.restage(ctx, []string{rel}); err != nil {
			w.logger.Warn("restage failed", zap.String("path", rel), zap.Error(err))
			return
		}
		w.logger.Info("restaged", zap.String("path", rel))

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// the entry stays staged until unstaged explicitly
		w.logger.Info("watched file removed", zap.String("path", rel))
	}
}
