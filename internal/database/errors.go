package database

import "errors"

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrLockNotAcquired indicates the migration lock is already held by another process.
var ErrLockNotAcquired = errors.New("migration lock not acquired")

// ErrUnsupportedDriver indicates a driver name other than postgres or sqlite.
var ErrUnsupportedDriver = errors.New("unsupported database driver")
