package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/executor"
	"github.com/aqasim81/schemaver/internal/history"
	"github.com/aqasim81/schemaver/internal/migration"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent is emitted for each migration Migrate processes.
type ProgressEvent struct {
	Migration *migration.Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// HistoryStore abstracts ledger operations for testability.
type HistoryStore interface {
	EnsureTable(ctx context.Context) error
	Applied(ctx context.Context) ([]history.Entry, error)
	RecordAppliedWith(ctx context.Context, ex database.Execer, e history.Entry) error
}

// ScriptRunner executes one migration script and records it through the
// callback, atomically where the dialect allows.
type ScriptRunner interface {
	Run(ctx context.Context, m *migration.Migration, record executor.RecordFunc) error
}

// Manager resolves migrations, diffs them against the ledger and applies the
// pending ones in version order. It does not own the connection and holds no
// state between calls besides its configuration. A Manager is not safe for
// concurrent use; callers serialize migration runs against one database.
type Manager struct {
	resolver         migration.Resolver
	store            HistoryStore
	runner           ScriptRunner
	logger           zerolog.Logger
	now              func() time.Time
	onProgress       func(ProgressEvent)
	table            string
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver sets the source of migrations.
func WithResolver(r migration.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithTableName overrides the ledger table (default "schema_version").
func WithTableName(name string) Option {
	return func(m *Manager) { m.table = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source used for applied_at and durations.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(m *Manager) { m.onProgress = fn }
}

// WithLockTimeout sets the per-migration lock_timeout (PostgreSQL only).
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// WithStatementTimeout sets the per-migration statement_timeout (PostgreSQL only).
func WithStatementTimeout(d time.Duration) Option {
	return func(m *Manager) { m.statementTimeout = d }
}

// New creates a Manager for the caller's connection. The connection must
// outlive every call made on the Manager.
func New(conn database.Conn, driver database.Driver, opts ...Option) *Manager {
	m := &Manager{
		logger: zerolog.Nop(),
		now:    time.Now,
		table:  history.DefaultTableName,
	}

	for _, opt := range opts {
		opt(m)
	}

	// Defaults for injectable collaborators are built after options so the
	// table name and timeouts reach them.
	if m.store == nil {
		m.store = history.New(conn, driver, m.table)
	}

	if m.runner == nil {
		m.runner = executor.New(conn, driver,
			executor.WithLockTimeout(m.lockTimeout),
			executor.WithStatementTimeout(m.statementTimeout),
		)
	}

	return m
}

// SetResolver replaces the migration source used by subsequent calls.
func (m *Manager) SetResolver(r migration.Resolver) {
	m.resolver = r
}

// EnableMigrations creates the ledger table if it does not exist.
func (m *Manager) EnableMigrations(ctx context.Context) error {
	if err := m.store.EnsureTable(ctx); err != nil {
		return err
	}

	m.logger.Debug().Msg("schema history table ready")

	return nil
}

// PendingMigrations returns the resolved migrations that have no ledger
// entry, in ascending version order. Duplicate versions fail with a
// *DuplicateError before the database is touched.
func (m *Manager) PendingMigrations(ctx context.Context) ([]migration.Migration, error) {
	report, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	return report.Pending, nil
}

// Migrate applies every pending migration in ascending version order, each
// in its own transaction together with its ledger row. It stops at the first
// failure with an *ExecutionError; migrations applied before it stay
// committed. The applied migrations are returned in both cases.
func (m *Manager) Migrate(ctx context.Context) ([]migration.Migration, error) {
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		m.logger.Info().Msg("schema is up to date")

		return nil, nil
	}

	m.logger.Info().Int("pending", len(pending)).Msg("applying migrations")

	applied := make([]migration.Migration, 0, len(pending))

	for i := range pending {
		if err := m.applyOne(ctx, &pending[i]); err != nil {
			return applied, err
		}

		applied = append(applied, pending[i])
	}

	m.logger.Info().Int("applied", len(applied)).Msg("migrations complete")

	return applied, nil
}

// Validate reports whether the ledger holds exactly the resolved versions:
// nothing pending, no gaps and no versions the resolver no longer knows.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	report, err := m.Status(ctx)
	if err != nil {
		return false, err
	}

	for _, mod := range report.Modified {
		m.logger.Warn().Str("version", mod.Version.String()).Str("source", mod.Source).
			Msg("applied migration script changed since it ran")
	}

	if !report.Consistent() {
		m.logger.Warn().
			Int("pending", len(report.Pending)).
			Int("gaps", len(report.Gaps)).
			Int("unknown", len(report.Unknown)).
			Msg("schema history does not match resolved migrations")

		return false, nil
	}

	return true, nil
}

// Status resolves migrations, ensures the ledger exists and returns the
// comparison between the two.
func (m *Manager) Status(ctx context.Context) (*Report, error) {
	resolved, err := m.resolve()
	if err != nil {
		return nil, err
	}

	if err := m.EnableMigrations(ctx); err != nil {
		return nil, err
	}

	entries, err := m.store.Applied(ctx)
	if err != nil {
		return nil, err
	}

	return buildReport(resolved, entries), nil
}

// resolve loads, sorts and checks migrations for duplicate versions.
func (m *Manager) resolve() ([]migration.Migration, error) {
	if m.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", ErrResolution)
	}

	found, err := m.resolver.Resolve()
	if err != nil {
		if errors.Is(err, ErrResolution) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	sorted := migration.Sort(found)

	if err := checkDuplicates(sorted); err != nil {
		m.logger.Error().Err(err).Msg("duplicate migration version")

		return nil, err
	}

	m.logger.Debug().Int("count", len(sorted)).Msg("resolved migrations")

	return sorted, nil
}

// applyOne runs a single migration, records it and fires progress.
func (m *Manager) applyOne(ctx context.Context, mig *migration.Migration) error {
	m.fireProgress(ProgressEvent{Migration: mig, Status: StatusStarting})

	start := m.now()

	err := m.runner.Run(ctx, mig, func(ctx context.Context, ex database.Execer) error {
		finished := m.now()

		return m.store.RecordAppliedWith(ctx, ex, history.Entry{
			Version:     mig.Version.String(),
			Description: mig.Description,
			Script:      mig.Source,
			Checksum:    mig.Checksum,
			AppliedAt:   finished,
			DurationMs:  int(finished.Sub(start).Milliseconds()),
		})
	})

	duration := m.now().Sub(start)

	if err != nil {
		m.fireProgress(ProgressEvent{Migration: mig, Status: StatusFailed, Duration: duration, Error: err})
		m.logger.Error().Err(err).Str("version", mig.Version.String()).Msg("migration failed")

		if errors.Is(err, ErrPersistence) {
			return err
		}

		return &ExecutionError{Version: mig.Version, Description: mig.Description, Err: err}
	}

	m.fireProgress(ProgressEvent{Migration: mig, Status: StatusCompleted, Duration: duration})
	m.logger.Info().
		Str("version", mig.Version.String()).
		Str("description", mig.Description).
		Dur("duration", duration).
		Msg("applied migration")

	return nil
}

func (m *Manager) fireProgress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
