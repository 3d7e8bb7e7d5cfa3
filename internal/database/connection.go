package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const defaultMaxConns = 5

// DB is an open database handle together with its dialect. For PostgreSQL
// the database/sql handle is backed by a pgx pool, which is also used for
// session-level advisory locks.
type DB struct {
	SQL      *sql.DB
	Driver   Driver
	pool     *pgxpool.Pool
	lock     *processLock
	lockFile string
}

// Open connects to the database and verifies connectivity.
func Open(ctx context.Context, driver Driver, databaseURL string) (*DB, error) {
	switch driver {
	case Postgres:
		pool, err := NewPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}

		return &DB{SQL: stdlib.OpenDBFromPool(pool), Driver: Postgres, pool: pool}, nil
	case SQLite:
		return openSQLite(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Close releases the database handle and, for PostgreSQL, the pool.
func (db *DB) Close() error {
	err := db.SQL.Close()

	if db.pool != nil {
		db.pool.Close()
	}

	return err
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, sets a conservative max connection limit,
// and pings the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// openSQLite opens a SQLite database file (or ":memory:"). SQLite allows a
// single writer, and an in-memory database exists per connection, so the
// handle is limited to one connection.
func openSQLite(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrInvalidDatabaseURL)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &DB{SQL: sqlDB, Driver: SQLite, lock: &processLock{}, lockFile: sqliteLockFile(dsn)}, nil
}
