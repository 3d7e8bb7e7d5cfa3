package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaver/internal/config"
	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/manager"
	"github.com/aqasim81/schemaver/internal/migration"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, SCHEMAVER_DATABASE_URL, or database_url in config)",
)

// openManager connects to the configured database and builds a Manager that
// resolves migrations from the configured directory. The caller closes db.
func openManager(cmd *cobra.Command, opts ...manager.Option) (*manager.Manager, *database.DB, error) {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return nil, nil, errDatabaseURLRequired
	}

	driver, err := database.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cmd, cfg)
	logger.Debug().
		Str("driver", string(driver)).
		Str("database", config.RedactURL(cfg.DatabaseURL)).
		Str("migrations", cfg.MigrationsDir).
		Msg("connecting")

	db, err := database.Open(commandContext(cmd), driver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	base := []manager.Option{
		manager.WithResolver(migration.NewDirResolver(cfg.MigrationsDir)),
		manager.WithTableName(cfg.Table),
		manager.WithLogger(logger),
		manager.WithLockTimeout(cfg.LockTimeout),
		manager.WithStatementTimeout(cfg.StatementTimeout),
	}

	return manager.New(db.SQL, db.Driver, append(base, opts...)...), db, nil
}
