// Package runlock keeps two harness instances on one host from driving the shared remote
// store at the same time.
package runlock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/synccheck/internal/config"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/gofrs/flock"
)

const FileName = "synccheck.lock"

type Lock struct {
	fileLock   *flock.Flock
	lockPath   string
	owner      string
	acquiredAt time.Time
	mu         sync.RWMutex
}

type Config struct {
	Timeout  time.Duration
	Retry    time.Duration
	MaxRetry int
}

func DefaultConfig() *Config {
	timeout, _ := config.DurationOrDefault(config.DefaultLockTimeout, config.DefaultLockTimeout)
	retry, _ := config.DurationOrDefault(config.DefaultLockRetry, config.DefaultLockRetry)

	return &Config{
		Timeout:  timeout,
		Retry:    retry,
		MaxRetry: config.DefaultLockMaxRetry,
	}
}

// ConfigFrom converts the lock section of the harness config.
func ConfigFrom(cfg config.LockConfig) (*Config, error) {
	timeout, err := config.DurationOrDefault(cfg.Timeout, config.DefaultLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("lock.timeout: %w", err)
	}
	retry, err := config.DurationOrDefault(cfg.Retry, config.DefaultLockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock.retry: %w", err)
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = config.DefaultLockMaxRetry
	}
	return &Config{Timeout: timeout, Retry: retry, MaxRetry: maxRetry}, nil
}

// Acquire takes the exclusive lock in dir, retrying until cfg is exhausted. A lock held
// elsewhere yields ErrLocked.
func Acquire(ctx context.Context, dir, owner string, cfg *Config) (*Lock, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, FileName)
	l := &Lock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
		owner:    owner,
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := l.acquireWithRetry(ctx, cfg); err != nil {
		return nil, err
	}

	l.acquiredAt = time.Now()
	slog.Info("Run lock acquired",
		"owner", owner,
		"path", lockPath,
		"acquired_at", l.acquiredAt.Format(time.RFC3339Nano),
	)
	return l, nil
}

func (l *Lock) acquireWithRetry(ctx context.Context, cfg *Config) error {
	for i := 0; i < cfg.MaxRetry; i++ {
		locked, err := l.fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			return nil
		}

		if i == cfg.MaxRetry-1 {
			break
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%s is held by another harness (timeout after %v): %w", l.lockPath, cfg.Timeout, syncErrors.ErrLocked)
			}
			return fmt.Errorf("lock acquisition cancelled: %w", ctx.Err())
		case <-time.After(cfg.Retry):
		}
	}

	return fmt.Errorf("%s is held by another harness: %w", l.lockPath, syncErrors.ErrLocked)
}

func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLock == nil {
		return
	}

	held := time.Since(l.acquiredAt)
	if err := l.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release run lock", "path", l.lockPath, "error", err)
	} else {
		slog.Info("Run lock released", "owner", l.owner, "held_duration_ms", held.Milliseconds())
	}
	l.fileLock = nil
}

func (l *Lock) IsLocked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fileLock != nil
}

func (l *Lock) Path() string {
	return l.lockPath
}

// CleanupStale removes the lock file in dir when it is older than maxAge and force is set.
// It reports whether a file was removed.
func CleanupStale(dir string, maxAge time.Duration, force bool) (bool, error) {
	lockPath := filepath.Join(dir, FileName)
	info, err := os.Stat(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	age := time.Since(info.ModTime())
	if age <= maxAge {
		return false, nil
	}

	slog.Warn("Found stale run lock", "path", lockPath, "age", age, "max_age", maxAge)
	if !force {
		slog.Info("Stale run lock left in place (use --force to remove)", "path", lockPath)
		return false, nil
	}

	holder := flock.New(lockPath)
	locked, err := holder.TryLock()
	if err != nil {
		return false, fmt.Errorf("test run lock: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("%s is still held: %w", lockPath, syncErrors.ErrLocked)
	}
	defer holder.Unlock()

	if err := os.Remove(lockPath); err != nil {
		return false, err
	}
	slog.Info("Stale run lock removed", "path", lockPath)
	return true, nil
}
