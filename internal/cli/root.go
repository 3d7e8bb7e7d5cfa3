package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaver/internal/config"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// verbose mirrors the --verbose persistent flag.
var verbose bool //nolint:gochecknoglobals // standard Cobra pattern

// rootCmd is the base command for the schemaver CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "schemaver",
	Version: version,
	Short:   "Forward-only versioned schema migrations for PostgreSQL and SQLite",
	Long: `schemaver discovers V<version>__<description>.sql scripts, applies the
ones the database has not seen yet in version order, records each in a
schema history table and reports whether that history matches the scripts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", config.DefaultConfigFile, "path to configuration file")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string or SQLite file path")
	rootCmd.PersistentFlags().String("driver", "", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	rootCmd.PersistentFlags().String("table", "", "schema history table name")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := []struct {
		name string
		dst  *string
	}{
		{"database-url", &cfg.DatabaseURL},
		{"driver", &cfg.Driver},
		{"migrations-dir", &cfg.MigrationsDir},
		{"table", &cfg.Table},
	}

	for _, f := range flags {
		if cmd.Flags().Lookup(f.name) != nil && cmd.Flags().Changed(f.name) {
			*f.dst, _ = cmd.Flags().GetString(f.name)
		}
	}
}

// newLogger builds the console logger on the command's stderr. --verbose
// forces debug level; otherwise log_level from the configuration applies.
func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
