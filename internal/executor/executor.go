package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/migration"
	"github.com/aqasim81/schemaver/internal/parser"
)

// RecordFunc writes the ledger row for a migration through ex. It runs in the
// same transaction as the script whenever the script itself is transactional.
type RecordFunc func(ctx context.Context, ex database.Execer) error

// Executor runs a single migration script against the database.
type Executor struct {
	conn             database.Conn
	driver           database.Driver
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLockTimeout sets the per-transaction lock_timeout (PostgreSQL only).
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout (PostgreSQL only).
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// New creates an Executor for the given connection and dialect.
func New(conn database.Conn, driver database.Driver, opts ...Option) *Executor {
	e := &Executor{
		conn:   conn,
		driver: driver,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes the migration script and then calls record. Script failures
// are wrapped with ErrExecutionFailed and roll back the transaction, so no
// partial effects and no ledger row remain. Errors from record are returned
// as is and also roll back.
func (e *Executor) Run(ctx context.Context, m *migration.Migration, record RecordFunc) error {
	if e.driver != database.Postgres {
		return ExecInTransaction(ctx, e.conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Script); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return record(ctx, tx)
		})
	}

	stmts, err := parser.Split(m.Script)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	concurrent, err := parser.ContainsConcurrentIndex(m.Script)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	if concurrent {
		return e.runWithoutTransaction(ctx, stmts, record)
	}

	return ExecInTransaction(ctx, e.conn, func(tx *sql.Tx) error {
		if err := e.applyTimeouts(ctx, tx); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}

		if err := execStatements(ctx, tx, stmts); err != nil {
			return err
		}

		return record(ctx, tx)
	})
}

// runWithoutTransaction executes statements directly on the connection,
// outside any transaction. Required for CREATE INDEX CONCURRENTLY, which
// cannot run inside a transaction block. Statements that completed before a
// failure stay applied.
func (e *Executor) runWithoutTransaction(ctx context.Context, stmts []string, record RecordFunc) error {
	if err := execStatements(ctx, e.conn, stmts); err != nil {
		return err
	}

	return record(ctx, e.conn)
}

func (e *Executor) applyTimeouts(ctx context.Context, ex database.Execer) error {
	if e.lockTimeout > 0 {
		if err := SetLockTimeout(ctx, ex, e.lockTimeout); err != nil {
			return err
		}
	}

	if e.statementTimeout > 0 {
		if err := SetStatementTimeout(ctx, ex, e.statementTimeout); err != nil {
			return err
		}
	}

	return nil
}

func execStatements(ctx context.Context, ex database.Execer, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: statement %d: %w", ErrExecutionFailed, i+1, err)
		}
	}

	return nil
}
