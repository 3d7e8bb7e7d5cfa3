package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schemaver/internal/database"
)

func TestNewPool_invalidURL_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := database.NewPool(ctx, "not-a-valid-url")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestNewPool_emptyURL_returnsError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := database.NewPool(ctx, "")

	require.Error(t, err)
}

func TestOpen_unsupportedDriver_returnsError(t *testing.T) {
	t.Parallel()

	_, err := database.Open(context.Background(), database.Driver("mysql"), "dsn")

	require.ErrorIs(t, err, database.ErrUnsupportedDriver)
}

func TestOpen_sqliteEmptyPath_returnsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := database.Open(context.Background(), database.SQLite, "")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestOpen_sqliteFile_executesStatements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := database.Open(ctx, database.SQLite, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, database.SQLite, db.Driver)

	_, err = db.SQL.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.SQL.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count))
	assert.Zero(t, count)
}

func TestDB_TryLock_sqlite_isExclusiveUntilReleased(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, err := database.Open(ctx, database.SQLite, ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	first, err := db.TryLock(ctx)
	require.NoError(t, err)

	_, err = db.TryLock(ctx)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)

	require.NoError(t, first.Release(ctx))
	require.NoError(t, first.Release(ctx), "second release should be a no-op")

	second, err := db.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestDB_TryLock_sqliteFile_excludesOtherHandles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	first, err := database.Open(ctx, database.SQLite, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.Close() })

	second, err := database.Open(ctx, database.SQLite, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = second.Close() })

	held, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path+".lock")

	_, err = second.TryLock(ctx)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)

	require.NoError(t, held.Release(ctx))
	assert.NoFileExists(t, path+".lock")

	again, err := second.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestDB_TryLock_sqliteFile_leftoverLockFileBlocks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(path+".lock", []byte("pid=1\n"), 0o600))

	db, err := database.Open(ctx, database.SQLite, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, err = db.TryLock(ctx)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
	assert.Contains(t, err.Error(), path+".lock")

	// The failed attempt must not leave the in-process mutex held.
	require.NoError(t, os.Remove(path+".lock"))

	held, err := db.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, held.Release(ctx))
}
