package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrijs2005/urbanquest/internal/logging"
)

// Invalidator is anything holding a cache that can be dropped.
type Invalidator interface {
	Invalidate()
}

// FileWatcher invalidates a cache when the users file changes on disk,
// including edits made by other processes. The parent directory is
// watched so that atomic replacements (write temp, rename) are seen.
type FileWatcher struct {
	path    string
	target  Invalidator
	log     logging.Logger
	watcher *fsnotify.Watcher

	closeOnce sync.Once
	closeErr  error
}

// NewFileWatcher registers the watch immediately; events are handled
// once Run is called.
func NewFileWatcher(path string, target Invalidator, log logging.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{
		path:    filepath.Clean(abs),
		target:  target,
		log:     log.With("module", "watcher", "path", abs),
		watcher: w,
	}, nil
}

// Close releases the watch. Run returns once the watch is closed. It is
// safe to call more than once.
func (fw *FileWatcher) Close() error {
	fw.closeOnce.Do(func() {
		fw.closeErr = fw.watcher.Close()
	})
	return fw.closeErr
}

// Run processes events until ctx is done or the watcher is closed, and
// then releases the watch.
func (fw *FileWatcher) Run(ctx context.Context) {
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				fw.target.Invalidate()
				fw.log.Debug(ctx, "users file changed, cache invalidated", "op", event.Op.String())
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn(ctx, "watcher error", "error", err)
		}
	}
}
