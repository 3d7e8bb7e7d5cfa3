package history

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/migration"
)

// Entry is one row of the ledger: a version that was successfully applied.
type Entry struct {
	Version     string
	Description string
	Script      string
	Checksum    string
	AppliedAt   time.Time
	DurationMs  int
}

// Key returns the canonical form of the entry's version, the form resolved
// migrations are compared by.
func (e Entry) Key() string {
	return migration.CanonicalVersion(e.Version)
}

// Store reads and writes the ledger table.
type Store struct {
	db      database.Queryer
	driver  database.Driver
	table   string
	builder sq.StatementBuilderType
}

var entryColumns = []string{"version", "description", "script", "checksum", "applied_at", "duration_ms"}

// New creates a Store for the given table. An empty table name selects
// DefaultTableName.
func New(db database.Queryer, driver database.Driver, table string) *Store {
	if table == "" {
		table = DefaultTableName
	}

	return &Store{
		db:      db,
		driver:  driver,
		table:   driver.QuoteIdentifier(table),
		builder: driver.StatementBuilder(),
	}
}

// EnsureTable creates the ledger table if it does not exist. Safe to call
// repeatedly.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createTableSQL(s.driver, s.table))
	if err != nil {
		// Concurrent CREATE TABLE IF NOT EXISTS on PostgreSQL can collide on
		// the catalog; the table exists afterwards either way.
		if s.driver.IsUniqueViolation(err) {
			return nil
		}

		return fmt.Errorf("%w: creating table %s: %w", ErrPersistence, s.table, err)
	}

	return nil
}

// Applied returns every ledger entry in the order it was applied.
func (s *Store) Applied(ctx context.Context) ([]Entry, error) {
	query, args, err := s.builder.
		Select(entryColumns...).
		From(s.table).
		OrderBy("applied_at", "version").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: building query: %w", ErrPersistence, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", ErrPersistence, s.table, err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var e Entry
		if scanErr := rows.Scan(&e.Version, &e.Description, &e.Script, &e.Checksum, &e.AppliedAt, &e.DurationMs); scanErr != nil {
			return nil, fmt.Errorf("%w: scanning %s row: %w", ErrPersistence, s.table, scanErr)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrPersistence, s.table, err)
	}

	return entries, nil
}

// AppliedVersions returns the set of versions recorded in the ledger, in
// canonical form: a row stored as "001" is reported as "1".
func (s *Store) AppliedVersions(ctx context.Context) (map[string]struct{}, error) {
	entries, err := s.Applied(ctx)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		versions[e.Key()] = struct{}{}
	}

	return versions, nil
}

// RecordApplied inserts a ledger row using the store's own connection.
func (s *Store) RecordApplied(ctx context.Context, e Entry) error {
	return s.RecordAppliedWith(ctx, s.db, e)
}

// RecordAppliedWith inserts a ledger row through ex, usually the transaction
// the migration script ran in. A row for the same version yields
// ErrVersionConflict.
func (s *Store) RecordAppliedWith(ctx context.Context, ex database.Execer, e Entry) error {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now()
	}

	query, args, err := s.builder.
		Insert(s.table).
		Columns(entryColumns...).
		Values(e.Version, e.Description, e.Script, e.Checksum, e.AppliedAt.UTC(), e.DurationMs).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: building insert: %w", ErrPersistence, err)
	}

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		if s.driver.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w: version %s: %w", ErrPersistence, ErrVersionConflict, e.Version, err)
		}

		return fmt.Errorf("%w: recording version %s: %w", ErrPersistence, e.Version, err)
	}

	return nil
}

// Table returns the quoted ledger table name.
func (s *Store) Table() string {
	return s.table
}
