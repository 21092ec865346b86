// Package watch translates raw filesystem events in workspace roots
// into the indexer's file hooks.
//
// Known dependency and VCS directories are never watched; that bounds
// watch descriptors, while full exclusion correctness stays with the
// walker's ignore rulesets.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codesync/internal/ignore"
	"github.com/fyrsmithlabs/codesync/internal/logging"
)

// Handler receives workspace file events.
type Handler interface {
	// FileSaved is called when a file's content changes.
	FileSaved(path string)

	// FileCreated is called when a file or directory appears.
	FileCreated(path string)

	// FileDeleted is called when a file or directory disappears.
	FileDeleted(path string)
}

// Watcher watches workspace roots recursively and forwards events to a
// Handler.
type Watcher struct {
	watcher *fsnotify.Watcher
	handler Handler
	stop    chan struct{}
	log     *logging.Logger
}

// New creates a watcher over the given roots.
func New(roots []string, handler Handler, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initializing filesystem watcher: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		handler: handler,
		stop:    make(chan struct{}),
		log:     log.Named("watch"),
	}

	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			w.log.Warn("cannot watch workspace root", zap.String("root", root), zap.Error(err))
		}
	}
	return w, nil
}

// Start begins forwarding events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignore.WatchSkipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Debug("cannot watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.dispatch(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) dispatch(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		// New directories need watches of their own.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !ignore.WatchSkipDirs[filepath.Base(event.Name)] {
				_ = w.addRecursive(event.Name)
			}
		}
		w.handler.FileCreated(event.Name)
	case event.Op&fsnotify.Write != 0:
		w.handler.FileSaved(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handler.FileDeleted(event.Name)
	}
}
