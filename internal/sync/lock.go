package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/klxm/synch/internal/logger"
)

const lockRetryDelay = 100 * time.Millisecond

// Locker serializes runs of the same kind. The returned function releases
// the lock.
type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

// FileLocker takes advisory locks on <dir>/<name>.lock, shared by every
// process that works on the same mirror
type FileLocker struct {
	dir     string
	timeout time.Duration
}

// NewFileLocker creates a FileLocker that waits at most timeout per lock
func NewFileLocker(dir string, timeout time.Duration) *FileLocker {
	return &FileLocker{dir: dir, timeout: timeout}
}

// Lock blocks until the lock is held, the timeout passes or ctx ends.
// A timeout yields an error wrapping ErrLocked.
func (l *FileLocker) Lock(ctx context.Context, name string) (func(), error) {
	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	fl := flock.New(path)

	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s held longer than %s", ErrLocked, path, l.timeout)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Warnf("Failed to release lock %s: %v", path, err)
		}
	}, nil
}

// NopLocker never blocks
type NopLocker struct{}

// Lock returns immediately
func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
