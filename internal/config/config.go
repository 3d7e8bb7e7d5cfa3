package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/schemaver/internal/database"
	"github.com/aqasim81/schemaver/internal/history"
)

// Default values for configuration fields. Timeouts default to zero, which
// leaves them to the database driver.
const (
	DefaultDriver        = "postgres"
	DefaultMigrationsDir = "./migrations"
	DefaultFormat        = "text"
	DefaultLogLevel      = "info"
	DefaultConfigFile    = "schemaver.yml"
	envPrefix            = "SCHEMAVER_"
)

// ErrInvalidFormat indicates an output format other than text or json.
var ErrInvalidFormat = errors.New("invalid output format")

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	Driver           string
	MigrationsDir    string
	Table            string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	Format           string
	LogLevel         string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	Driver           string `yaml:"driver"`
	MigrationsDir    string `yaml:"migrations_dir"`
	Table            string `yaml:"table"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	Format           string `yaml:"format"`
	LogLevel         string `yaml:"log_level"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Driver:        DefaultDriver,
		MigrationsDir: DefaultMigrationsDir,
		Table:         history.DefaultTableName,
		Format:        DefaultFormat,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.Driver, raw.Driver)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.Table, raw.Table)
	setString(&cfg.Format, raw.Format)
	setString(&cfg.LogLevel, raw.LogLevel)

	if err := setDuration(&cfg.LockTimeout, "lock_timeout", raw.LockTimeout); err != nil {
		return nil, err
	}

	if err := setDuration(&cfg.StatementTimeout, "statement_timeout", raw.StatementTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MergeEnv overrides config fields from SCHEMAVER_* environment variables.
// Unparseable durations leave the current value in place.
func MergeEnv(cfg *Config) {
	setString(&cfg.DatabaseURL, os.Getenv(envPrefix+"DATABASE_URL"))
	setString(&cfg.Driver, os.Getenv(envPrefix+"DRIVER"))
	setString(&cfg.MigrationsDir, os.Getenv(envPrefix+"MIGRATIONS_DIR"))
	setString(&cfg.Table, os.Getenv(envPrefix+"TABLE"))
	setString(&cfg.Format, os.Getenv(envPrefix+"FORMAT"))
	setString(&cfg.LogLevel, os.Getenv(envPrefix+"LOG_LEVEL"))

	_ = setDuration(&cfg.LockTimeout, "lock_timeout", os.Getenv(envPrefix+"LOCK_TIMEOUT"))
	_ = setDuration(&cfg.StatementTimeout, "statement_timeout", os.Getenv(envPrefix+"STATEMENT_TIMEOUT"))
}

// Validate checks fields that every command relies on.
func (c *Config) Validate() error {
	if _, err := database.ParseDriver(c.Driver); err != nil {
		return err
	}

	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("%w: %q (want text or json)", ErrInvalidFormat, c.Format)
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", name, v, err)
	}

	*dst = d

	return nil
}
