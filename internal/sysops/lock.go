package sysops

import (
	"fmt"

	"github.com/gofrs/flock"
)

// InstanceLock enforces single-instance execution via a flock'd file.
// Concurrent invocations of the manager are unsafe, so the lock is acquired
// on startup and held until exit.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireLock takes an exclusive non-blocking lock on path. A second
// instance fails immediately instead of corrupting an in-flight swap.
func AcquireLock(path string) (*InstanceLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another forkswitch instance is running (lock %s held)", path)
	}
	return &InstanceLock{fl: fl}, nil
}

// Release drops the lock. Safe to call on every exit path.
func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
