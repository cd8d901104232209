package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WatchLockName is the lock file guarding watch mode inside the state dir.
const WatchLockName = "watch.lock"

// ErrWatchRunning is returned when another watcher holds the lock.
var ErrWatchRunning = errors.New("another watcher is already running")

// WatchLock is an exclusive advisory lock held for the life of a watcher.
type WatchLock struct {
	fl *flock.Flock
}

// AcquireWatchLock takes the watch lock in stateDir without blocking.
func AcquireWatchLock(stateDir string) (*WatchLock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	fl := flock.New(filepath.Join(stateDir, WatchLockName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring watch lock: %w", err)
	}
	if !locked {
		return nil, ErrWatchRunning
	}
	return &WatchLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *WatchLock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. It is safe to call more than once.
func (l *WatchLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
