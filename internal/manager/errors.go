package manager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aqasim81/schemaver/internal/history"
	"github.com/aqasim81/schemaver/internal/migration"
)

// ErrResolution indicates the migration source could not be read.
var ErrResolution = migration.ErrResolution

// ErrDuplicateMigration indicates two resolved migrations share a version.
var ErrDuplicateMigration = errors.New("duplicate migration version")

// ErrMigrationExecution indicates a migration script failed during Migrate.
var ErrMigrationExecution = errors.New("migration failed")

// ErrPersistence indicates the ledger could not be created, read or written.
var ErrPersistence = history.ErrPersistence

// DuplicateError names the version that more than one migration declares.
type DuplicateError struct {
	Version migration.Version
	Sources []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s: %s", ErrDuplicateMigration, e.Version, strings.Join(e.Sources, ", "))
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateMigration
}

// ExecutionError identifies the migration whose script failed.
type ExecutionError struct {
	Version     migration.Version
	Description string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: version %s (%s): %v", ErrMigrationExecution, e.Version, e.Description, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrMigrationExecution, e.Err}
}

// checkDuplicates reports the first version declared by more than one
// migration. sorted must be ordered by version.
func checkDuplicates(sorted []migration.Migration) error {
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Version.Equal(sorted[i-1].Version) {
			continue
		}

		dup := &DuplicateError{Version: sorted[i].Version, Sources: []string{sorted[i-1].Source}}
		for j := i; j < len(sorted) && sorted[j].Version.Equal(dup.Version); j++ {
			dup.Sources = append(dup.Sources, sorted[j].Source)
		}

		return dup
	}

	return nil
}
