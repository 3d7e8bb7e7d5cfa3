package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationLockID is the advisory lock identifier used to serialize
// migration runs against one PostgreSQL database.
const MigrationLockID int64 = 7163051208

// Releaser releases a held migration lock.
type Releaser interface {
	Release(ctx context.Context) error
}

// TryLock acquires the migration lock without waiting. PostgreSQL uses a
// session-level advisory lock. SQLite uses an in-process mutex plus, for
// file databases, a "<path>.lock" file created exclusively so separate
// processes exclude each other too. Returns ErrLockNotAcquired when the lock
// is held elsewhere.
func (db *DB) TryLock(ctx context.Context) (Releaser, error) {
	if db.pool != nil {
		handle, err := TryAcquireLock(ctx, db.pool)
		if err != nil {
			return nil, err
		}

		return handle, nil
	}

	if db.lock == nil {
		db.lock = &processLock{}
	}

	handle, err := db.lock.tryAcquire()
	if err != nil {
		return nil, err
	}

	if db.lockFile != "" {
		if err := createLockFile(db.lockFile); err != nil {
			_ = handle.Release(ctx)

			return nil, err
		}

		handle.file = db.lockFile
	}

	return handle, nil
}

// LockHandle wraps a dedicated pooled connection that holds a
// session-level advisory lock. Call Release to unlock and return
// the connection to the pool.
type LockHandle struct {
	conn *pgxpool.Conn
}

// TryAcquireLock attempts to acquire a session-level advisory lock.
// Returns a LockHandle if successful, or ErrLockNotAcquired if the
// lock is already held by another process. The caller must call
// handle.Release() when done.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for advisory lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", MigrationLockID).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, ErrLockNotAcquired
	}

	return &LockHandle{conn: conn}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", MigrationLockID)
	h.conn.Release()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}

type processLock struct {
	mu sync.Mutex
}

func (l *processLock) tryAcquire() (*processLockHandle, error) {
	if !l.mu.TryLock() {
		return nil, ErrLockNotAcquired
	}

	return &processLockHandle{lock: l}, nil
}

type processLockHandle struct {
	once sync.Once
	lock *processLock
	file string
}

// Release removes the lock file, if any, and unlocks the mutex. Subsequent
// calls are no-ops.
func (h *processLockHandle) Release(_ context.Context) error {
	var err error

	h.once.Do(func() {
		defer h.lock.mu.Unlock()

		if h.file == "" {
			return
		}

		if rmErr := os.Remove(h.file); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = fmt.Errorf("removing lock file %s: %w", h.file, rmErr)
		}
	})

	return err
}

// createLockFile atomically creates path, failing with ErrLockNotAcquired
// when it already exists. The file holds the owner's pid and start time.
func createLockFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: lock file %s exists", ErrLockNotAcquired, path)
		}

		return fmt.Errorf("creating lock file %s: %w", path, err)
	}

	_, err = fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return fmt.Errorf("writing lock file %s: %w", path, err)
	}

	return nil
}

// sqliteLockFile returns the lock file path for a SQLite DSN, or "" for
// in-memory databases, which no other process can open.
func sqliteLockFile(dsn string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")

	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}

	return path + ".lock"
}
