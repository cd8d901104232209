package monitoring

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
)

// DirWatcher signals when session logs in a directory are written.
// Bursts of writes are coalesced into a single pending signal.
type DirWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	wake    chan struct{}
	errs    chan error
	done    chan struct{}
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewDirWatcher watches dir for session log writes.
func NewDirWatcher(dir string) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch sessions directory %s: %w", dir, err)
	}

	return &DirWatcher{
		watcher: watcher,
		dir:     dir,
		wake:    make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *DirWatcher) Dir() string {
	return w.dir
}

// Start begins watching and returns the wake channel. Subsequent calls
// return the same channel.
func (w *DirWatcher) Start() <-chan struct{} {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return w.wake
	}
	w.started = true
	w.mu.Unlock()

	go w.watch()
	return w.wake
}

// Errors returns watcher errors. Only the latest unread error is kept.
func (w *DirWatcher) Errors() <-chan error {
	return w.errs
}

func (w *DirWatcher) watch() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != activity.LogExtension {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case w.wake <- struct{}{}:
			default:
				// A wake-up is already pending.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Close stops the watcher and releases resources. It is safe to call more
// than once.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
