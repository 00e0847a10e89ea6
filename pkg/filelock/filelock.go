// Package filelock implements an advisory lock backed by an exclusive
// lock file, visible across processes sharing the filesystem.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired in time.
var ErrTimeout = errors.New("filelock: acquire timed out")

// Lock serializes a read-modify-write sequence on a shared file by holding
// an O_EXCL lock file next to it. Acquire polls until the file can be
// created exclusively or the timeout elapses.
type Lock struct {
	path     string
	timeout  time.Duration
	interval time.Duration
}

// New creates a lock on the given lock file path. Zero durations fall back
// to the defaults: 10s timeout, 100ms poll interval.
func New(path string, timeout, interval time.Duration) *Lock {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Lock{path: path, timeout: timeout, interval: interval}
}

// Acquire takes the lock, polling every interval until the timeout.
// A timeout is surfaced as ErrTimeout and the caller's request is expected
// to abort; there is no automatic retry beyond the polling window.
func (l *Lock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("filelock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// Release drops the lock. Safe to call when the lock is not held.
func (l *Lock) Release() {
	_ = os.Remove(l.path)
}
