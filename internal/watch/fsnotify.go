// Package watch uploads documents dropped into a folder.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/kalambet/smartnotes/internal/document"
)

// Watcher reports supported files created or written in a directory.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
}

// NewWatcher creates a Watcher. Close releases it.
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fs: fw, logger: logger}, nil
}

// Watch starts monitoring dir and emits the paths of files that should be
// uploaded. The channel is closed when ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.fs.Add(dir); err != nil {
		return nil, err
	}

	paths := make(chan string, 100)
	go func() {
		defer close(paths)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !wanted(event.Name) {
					continue
				}
				select {
				case paths <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "dir", dir, "error", err)
			}
		}
	}()
	return paths, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// wanted skips hidden and editor temporary files.
func wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return document.Supported(path)
}
