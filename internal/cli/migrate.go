package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/manager"
)

// errMigrationInProgress is returned when another process holds the migration lock.
var errMigrationInProgress = errors.New("another migration run holds the lock (use --no-lock to skip locking)")

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in version order, each in its own transaction
together with its schema history entry. Stops at the first failing script;
migrations applied before it stay applied.`,
	RunE: runMigrate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	migrateCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	migrateCmd.Flags().Bool("no-lock", false, "do not take the migration lock (PostgreSQL advisory lock, <database>.lock file for SQLite)")
	migrateCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	migrateCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noLock, _ := cmd.Flags().GetBool("no-lock")

	if cmd.Flags().Changed("lock-timeout") {
		cfg.LockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	if cmd.Flags().Changed("statement-timeout") {
		cfg.StatementTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	out := cmd.OutOrStdout()

	mgr, db, err := openManager(cmd, manager.WithProgressCallback(printProgress(out)))
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best-effort close on return

	ctx := commandContext(cmd)

	if dryRun {
		return printDryRun(cmd, mgr)
	}

	if !noLock {
		lock, lockErr := db.TryLock(ctx)
		if lockErr != nil {
			if errors.Is(lockErr, database.ErrLockNotAcquired) {
				return fmt.Errorf("%w: %w", errMigrationInProgress, lockErr)
			}

			return fmt.Errorf("acquiring migration lock: %w", lockErr)
		}
		defer lock.Release(ctx) //nolint:errcheck // best-effort release on return
	}

	applied, err := mgr.Migrate(ctx)
	if err != nil {
		fmt.Fprintf(out, "\nMigrate stopped: %d applied before the failure.\n", len(applied))

		return err
	}

	if len(applied) == 0 {
		fmt.Fprintln(out, "Schema is up to date.")

		return nil
	}

	fmt.Fprintf(out, "\nMigrate complete: %d applied.\n", len(applied))

	return nil
}

func printDryRun(cmd *cobra.Command, mgr *manager.Manager) error {
	pending, err := mgr.PendingMigrations(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--- DRY RUN (no migrations will be applied) ---")

	for _, m := range pending {
		fmt.Fprintf(out, "  Would apply V%s %s\n", m.Version, m.Description)
	}

	fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied.\n", len(pending))

	return nil
}

func printProgress(out io.Writer) func(manager.ProgressEvent) {
	return func(event manager.ProgressEvent) {
		switch event.Status {
		case manager.StatusStarting:
			fmt.Fprintf(out, "  Applying V%s %s ... ", event.Migration.Version, event.Migration.Description)
		case manager.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case manager.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}
