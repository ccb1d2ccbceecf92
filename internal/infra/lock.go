package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// InstanceLock guarantees a single live monitor per data directory,
// so only one process ever writes today's day file.
type InstanceLock struct {
	fileLock   *flock.Flock
	path       string
	acquiredAt time.Time
	mu         sync.Mutex
	logger     *zap.Logger
}

// LockConfig controls acquisition retries.
type LockConfig struct {
	Timeout time.Duration
	Retry   time.Duration
}

// DefaultLockConfig returns a short wait suitable for CLI startup.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Timeout: 2 * time.Second,
		Retry:   100 * time.Millisecond,
	}
}

// AcquireInstanceLock takes the lock at path or fails once cfg.Timeout elapses.
func AcquireInstanceLock(ctx context.Context, path string, cfg LockConfig, logger *zap.Logger) (*InstanceLock, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("another actmon instance holds %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another actmon instance holds %s", path)
	}

	l := &InstanceLock{fileLock: fl, path: path, acquiredAt: time.Now(), logger: logger}
	logger.Debug("instance lock acquired", zap.String("path", path))
	return l, nil
}

// Unlock releases the lock. Safe to call more than once.
func (l *InstanceLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLock == nil {
		return
	}
	if err := l.fileLock.Unlock(); err != nil {
		l.logger.Error("failed to release instance lock", zap.String("path", l.path), zap.Error(err))
	} else {
		l.logger.Debug("instance lock released",
			zap.String("path", l.path),
			zap.Duration("held", time.Since(l.acquiredAt)))
	}
	l.fileLock = nil
}

// IsLocked reports whether this handle still holds the lock.
func (l *InstanceLock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fileLock != nil
}
