package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aqasim81/schemaver/internal/database"
)

// txBeginner starts transactions. *sql.DB and *sql.Conn satisfy it.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ExecInTransaction runs fn inside a database transaction.
// On success the transaction is committed; on error it is rolled back.
func ExecInTransaction(ctx context.Context, db txBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrExecutionFailed, err)
	}

	defer tx.Rollback() //nolint:errcheck // rollback on committed tx returns ErrTxDone

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrExecutionFailed, err)
	}

	return nil
}

// SetLockTimeout sets lock_timeout for the rest of the current transaction.
func SetLockTimeout(ctx context.Context, ex database.Execer, timeout time.Duration) error {
	_, err := ex.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ceilMillis(timeout)))
	if err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return nil
}

// SetStatementTimeout sets statement_timeout for the rest of the current
// transaction so a runaway statement cannot hold locks indefinitely.
func SetStatementTimeout(ctx context.Context, ex database.Execer, timeout time.Duration) error {
	_, err := ex.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", ceilMillis(timeout)))
	if err != nil {
		return fmt.Errorf("setting statement_timeout: %w", err)
	}

	return nil
}

// ceilMillis rounds a positive timeout up to whole milliseconds. PostgreSQL
// reads 0ms as "no timeout", so 500µs must become 1ms rather than 0ms.
func ceilMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}

	return int64((d + time.Millisecond - 1) / time.Millisecond)
}
