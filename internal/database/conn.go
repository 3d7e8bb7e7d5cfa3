package database

import (
	"context"
	"database/sql"
)

// Execer runs a statement. *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer runs statements and simple queries.
type Queryer interface {
	Execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is the capability the migration core needs from the caller's database:
// statements, queries and transactions. *sql.DB satisfies it.
type Conn interface {
	Queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
