// Package watch provides a polling watcher for the growth of a single log
// file. `logs --follow` polls at its DefaultInterval but reads the Run's
// out.txt/err.txt directly rather than through ModWatcher. Adapted
// from tjper-teleport's internal/jobworker/watch.ModWatcher, which watches
// a file's mtime on a ticker and broadcasts to listener channels; jobman
// keeps that polling shape rather than tjper-teleport's fsnotify-backed
// sibling package, since wait/abort conditions already poll at a fixed
// cadence, so the same idiom is reused here instead of adding an inotify
// dependency for one more consumer.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the polling cadence used when the caller does not
// specify one.
const DefaultInterval = 200 * time.Millisecond

// ModWatcher watches a single file for size/mtime changes, broadcasting to
// any listener registered via WaitUntil. Zero value is not usable; use
// NewModWatcher.
type ModWatcher struct {
	mutex *sync.RWMutex

	path      string
	modTime   time.Time
	size      int64
	listeners map[uuid.UUID]chan struct{}
}

// NewModWatcher creates a watcher for path.
func NewModWatcher(path string) *ModWatcher {
	return &ModWatcher{
		mutex:     new(sync.RWMutex),
		path:      filepath.Clean(path),
		listeners: make(map[uuid.UUID]chan struct{}),
	}
}

// Watch polls path every interval until ctx is cancelled, broadcasting to
// listeners whenever the file's size or modification time advances. A
// missing file is tolerated (the Run's log directory may not exist yet at
// the instant `logs --follow` starts).
func (w *ModWatcher) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return err
			}

			if w.modTime.Equal(info.ModTime()) && w.size == info.Size() {
				continue
			}
			w.modTime = info.ModTime()
			w.size = info.Size()
			w.broadcast()
		}
	}
}

// WaitUntil blocks until the watcher observes a change, or ctx is cancelled.
func (w *ModWatcher) WaitUntil(ctx context.Context) error {
	w.mutex.Lock()
	id := uuid.New()
	modified := make(chan struct{}, 1)
	w.listeners[id] = modified
	w.mutex.Unlock()

	defer func() {
		w.mutex.Lock()
		delete(w.listeners, id)
		w.mutex.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-modified:
		return nil
	}
}

func (w *ModWatcher) broadcast() {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	for _, listener := range w.listeners {
		select {
		case listener <- struct{}{}:
		default:
		}
	}
}
