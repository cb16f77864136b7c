// Package store implements the file-backed persistence for product and order
// identifier mappings, including the exclusive file lock that serializes
// writers across processes.
package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/erp/channelsync/internal/domain/integration"
)

const (
	defaultLockPollInterval = 50 * time.Millisecond
	defaultLockTimeout      = 5 * time.Second
)

// fileLock is an exclusive, timeout-bounded lock backed by a sibling lock
// file. Acquisition busy-polls at pollInterval until timeout; on timeout the
// caller gets integration.ErrLockTimeout and must assume the guarded
// mutation did not happen.
type fileLock struct {
	path         string
	pollInterval time.Duration
	timeout      time.Duration
}

// newFileLock creates a lock guarding the file at path. Zero durations fall
// back to the defaults (50ms poll, 5s timeout).
func newFileLock(path string, pollInterval, timeout time.Duration) *fileLock {
	if pollInterval <= 0 {
		pollInterval = defaultLockPollInterval
	}
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &fileLock{
		path:         path + ".lock",
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Acquire takes the lock, waiting up to the configured timeout.
func (l *fileLock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			// Holder pid helps manual cleanup after a crash.
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return f.Close()
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file %s: %w", l.path, err)
		}
		if time.Now().After(deadline) {
			return integration.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// Release drops the lock. Releasing a lock that is not held is a no-op.
func (l *fileLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file %s: %w", l.path, err)
	}
	return nil
}
