package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalambet/smartnotes/internal/document"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/session"
)

// DefaultRetryInterval is how long a file waits after the upload surface
// turned it away as busy.
const DefaultRetryInterval = 2 * time.Second

// Uploader submits documents. *session.Session satisfies it.
type Uploader interface {
	UploadFile(ctx context.Context, name string, data []byte) (*gateway.UploadResult, error)
	UploadTextAs(ctx context.Context, name, text string) (*gateway.UploadResult, error)
}

// stamp identifies one version of a file on disk.
type stamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) stamp {
	return stamp{modTime: info.ModTime(), size: info.Size()}
}

// Worker uploads queued files one at a time. A file whose modification
// time and size match its last successful upload is skipped, so the burst
// of write events from a single save uploads it once.
type Worker struct {
	up     Uploader
	retry  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	queue    []string
	queued   map[string]bool
	uploaded map[string]stamp
}

// NewWorker creates a Worker.
// If retryInterval is <= 0, it defaults to DefaultRetryInterval.
func NewWorker(up Uploader, retryInterval time.Duration, logger *slog.Logger) *Worker {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		up:       up,
		retry:    retryInterval,
		logger:   logger,
		queued:   make(map[string]bool),
		uploaded: make(map[string]stamp),
	}
}

// Enqueue adds path unless it is already waiting.
func (w *Worker) Enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queued[path] {
		return
	}
	w.queued[path] = true
	w.queue = append(w.queue, path)
}

// Pending returns the number of queued files.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Run uploads paths received on events until ctx is cancelled. Files turned
// away as busy are retried every retry interval.
func (w *Worker) Run(ctx context.Context, events <-chan string) {
	for {
		if ctx.Err() != nil {
			return
		}

		for {
			done, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("watch iteration failed", "error", err)
				break
			}
			if !done {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.Enqueue(path)
		case <-time.After(w.retry):
		}
	}
}

// RunOnce processes the file at the head of the queue.
// Returns true if a file left the queue (uploaded or dropped), false if the
// queue is empty or the head must wait for the upload surface.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, ok := w.head()
	if !ok {
		return false, nil
	}

	err := w.upload(ctx, path)
	switch {
	case errors.Is(err, session.ErrBusy):
		w.logger.Debug("upload surface busy, will retry", "path", path)
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case err != nil:
		w.logger.Warn("watched file not uploaded", "path", path, "error", err)
	}
	w.pop(path)
	return true, nil
}

func (w *Worker) upload(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("loading: %w", err)
	}
	st := stampOf(info)
	if w.unchanged(path, st) {
		w.logger.Debug("watched file unchanged since upload", "path", filepath.Base(path))
		return nil
	}

	src, err := document.Load(path)
	if err != nil {
		return fmt.Errorf("loading: %w", err)
	}

	var res *gateway.UploadResult
	switch src.Kind {
	case document.KindPDF:
		res, err = w.up.UploadFile(ctx, src.Name, src.Data)
	default:
		res, err = w.up.UploadTextAs(ctx, src.Name, src.Text)
	}
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.uploaded[path] = st
	w.mu.Unlock()
	w.logger.Info("watched file uploaded",
		"path", filepath.Base(path),
		"chunks", res.ChunksStored,
		"already_existed", res.AlreadyExisted,
	)
	return nil
}

func (w *Worker) unchanged(path string, st stamp) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.uploaded[path]
	return ok && prev.size == st.size && prev.modTime.Equal(st.modTime)
}

func (w *Worker) head() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	return w.queue[0], true
}

func (w *Worker) pop(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range w.queue {
		if p == path {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			break
		}
	}
	delete(w.queued, path)
}
