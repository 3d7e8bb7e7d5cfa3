package database

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite" // also registers the "sqlite" database/sql driver
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver identifies the SQL dialect of the target database.
type Driver string

// Supported drivers.
const (
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ParseDriver maps a configured driver name to a Driver.
// "postgresql" and "pgx" are accepted as aliases for postgres, "sqlite3" for sqlite.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
	}
}

// Placeholder returns the bind-parameter style used when building statements.
func (d Driver) Placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}

	return sq.Question
}

// StatementBuilder returns a squirrel builder configured for the dialect.
func (d Driver) StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder())
}

// QuoteIdentifier quotes a possibly schema-qualified name ("public.schema_version").
// Both dialects accept double-quoted identifiers.
func (d Driver) QuoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// IsUniqueViolation reports whether err is a primary key or unique constraint
// violation raised by the database.
func (d Driver) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}
