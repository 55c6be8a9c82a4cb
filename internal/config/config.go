// Package config provides configuration loading and management for synch.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/klxm/synch/internal/logger"
)

// EnvPrefix is the prefix for environment variable overrides (SYNCH_BASE_PATH, ...).
const EnvPrefix = "SYNCH"

const (
	// StorageTypeSQLite keeps records in a local SQLite database file
	StorageTypeSQLite = "sqlite"

	// StorageTypePostgres keeps records in a PostgreSQL database
	StorageTypePostgres = "postgres"
)

const (
	// StateBackendFile persists sync state in a JSON file under the state directory
	StateBackendFile = "file"

	// StateBackendStore persists sync state in the record store's settings table
	StateBackendStore = "store"
)

// Key generation strategies
const (
	KeyStrategyNameBased = "name_based"
	KeyStrategyDateName  = "date_name"
	KeyStrategyHashBased = "hash_based"
)

const (
	defaultBasePath     = "./data/synch"
	defaultStateDirName = ".synch"
	defaultSQLitePath   = "./data/synch.db"
	defaultLockTimeout  = 30 * time.Second
	defaultAutoInterval = 2 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// BasePath is the mirror root holding modules/, templates/ and actions/
	BasePath string `yaml:"basePath,omitempty"`

	// StateDir holds lock files and the file-backed sync state.
	// Defaults to <basePath>/.synch
	StateDir string `yaml:"stateDir,omitempty"`

	Options  SyncOptions     `yaml:"options"`
	Ignore   []string        `yaml:"ignore,omitempty"`
	Include  []string        `yaml:"include,omitempty"`
	Storage  StorageConfig   `yaml:"storage"`
	State    StateConfig     `yaml:"state,omitempty"`
	AutoSync AutoSyncConfig  `yaml:"autoSync,omitempty"`
	Git      *GitConfig      `yaml:"git,omitempty"`
	Log      logger.Config   `yaml:"log,omitempty"`
	Metrics  *MetricsConfig  `yaml:"metrics,omitempty"`
	Server   *ServerConfig   `yaml:"server,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// SyncOptions are the reconciliation switches.
type SyncOptions struct {
	// AutoGenerateKeys lets the engine assign keys to records and items without one
	AutoGenerateKeys *bool `yaml:"autoGenerateKeys,omitempty"`

	// KeyGenerationStrategy is one of name_based, date_name, hash_based
	KeyGenerationStrategy string `yaml:"keyGenerationStrategy,omitempty"`

	// UpdateExistingOnKeyConflict lets file content overwrite a record with the same key
	UpdateExistingOnKeyConflict *bool `yaml:"updateExistingOnKeyConflict,omitempty"`

	// DescriptiveFilenames writes "<key> input.php" instead of "input.php"
	DescriptiveFilenames bool `yaml:"descriptiveFilenames,omitempty"`

	// SyncFrontend enables request-triggered sync for frontend requests
	SyncFrontend bool `yaml:"syncFrontend,omitempty"`

	// SyncBackend enables request-triggered sync for backend requests
	SyncBackend bool `yaml:"syncBackend,omitempty"`
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	Type   string        `yaml:"type,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// SQLiteConfig configures the local SQLite record store
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty"`
}

// StateConfig selects where the sync state (pause flag, last sync time) lives
type StateConfig struct {
	Backend string `yaml:"backend,omitempty"`
}

// AutoSyncConfig controls the periodic and request-triggered sync
type AutoSyncConfig struct {
	// Interval is how often serve mode checks for changes (e.g. "2m")
	Interval string `yaml:"interval,omitempty"`

	// LockTimeout bounds how long a run waits for a per-kind lock (e.g. "30s")
	LockTimeout string `yaml:"lockTimeout,omitempty"`
}

// GitConfig enables versioning of the mirror with git
type GitConfig struct {
	AutoCommit  bool   `yaml:"autoCommit"`
	AuthorName  string `yaml:"authorName,omitempty"`
	AuthorEmail string `yaml:"authorEmail,omitempty"`
}

// MetricsConfig enables the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig configures the HTTP API in serve mode
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SYNCH_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// LoadConfig loads configuration from a YAML file, applies SYNCH_* environment
// overrides and defaults, and validates the result. Without WithConfigPath the
// configuration is built from defaults and environment alone.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyEnv(newEnvViper())
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides file values with SYNCH_* environment variables
func (c *Config) applyEnv(v *viper.Viper) {
	if s := v.GetString("base_path"); s != "" {
		c.BasePath = s
	}
	if s := v.GetString("state_dir"); s != "" {
		c.StateDir = s
	}
	if s := v.GetString("storage.type"); s != "" {
		c.Storage.Type = s
	}
	if s := v.GetString("sqlite.path"); s != "" {
		if c.Storage.SQLite == nil {
			c.Storage.SQLite = &SQLiteConfig{}
		}
		c.Storage.SQLite.Path = s
	}
	if s := v.GetString("log.level"); s != "" {
		c.Log.Level = s
	}
	if s := v.GetString("key_strategy"); s != "" {
		c.Options.KeyGenerationStrategy = s
	}
	if v.IsSet("descriptive_filenames") {
		c.Options.DescriptiveFilenames = v.GetBool("descriptive_filenames")
	}
}

func (c *Config) applyDefaults() {
	if c.BasePath == "" {
		c.BasePath = defaultBasePath
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.BasePath, defaultStateDirName)
	}
	if c.Options.AutoGenerateKeys == nil {
		c.Options.AutoGenerateKeys = boolPtr(true)
	}
	if c.Options.UpdateExistingOnKeyConflict == nil {
		c.Options.UpdateExistingOnKeyConflict = boolPtr(true)
	}
	if c.Options.KeyGenerationStrategy == "" {
		c.Options.KeyGenerationStrategy = KeyStrategyNameBased
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageTypeSQLite
	}
	if c.Storage.Type == StorageTypeSQLite {
		if c.Storage.SQLite == nil {
			c.Storage.SQLite = &SQLiteConfig{}
		}
		if c.Storage.SQLite.Path == "" {
			c.Storage.SQLite.Path = defaultSQLitePath
		}
	}
	if c.State.Backend == "" {
		c.State.Backend = StateBackendFile
	}
}

// ShouldAutoGenerateKeys reports whether keys are generated for key-less entities
func (o SyncOptions) ShouldAutoGenerateKeys() bool {
	return o.AutoGenerateKeys == nil || *o.AutoGenerateKeys
}

// ShouldUpdateExisting reports whether file content overwrites a record with the same key
func (o SyncOptions) ShouldUpdateExisting() bool {
	return o.UpdateExistingOnKeyConflict == nil || *o.UpdateExistingOnKeyConflict
}

// GetAutoSyncInterval returns the serve-mode polling interval
func (c *Config) GetAutoSyncInterval() time.Duration {
	if c.AutoSync.Interval == "" {
		return defaultAutoInterval
	}
	d, err := time.ParseDuration(c.AutoSync.Interval)
	if err != nil {
		return defaultAutoInterval
	}
	return d
}

// GetLockTimeout returns how long a run waits for a per-kind lock
func (c *Config) GetLockTimeout() time.Duration {
	if c.AutoSync.LockTimeout == "" {
		return defaultLockTimeout
	}
	d, err := time.ParseDuration(c.AutoSync.LockTimeout)
	if err != nil {
		return defaultLockTimeout
	}
	return d
}

// GetServerAddress returns the serve-mode listen address
func (c *Config) GetServerAddress() string {
	if c.Server == nil || c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.Options.KeyGenerationStrategy {
	case KeyStrategyNameBased, KeyStrategyDateName, KeyStrategyHashBased:
	default:
		return fmt.Errorf("options.keyGenerationStrategy: unknown strategy '%s'", c.Options.KeyGenerationStrategy)
	}

	if err := validateStorage(&c.Storage, c.Database); err != nil {
		return err
	}

	switch c.State.Backend {
	case StateBackendFile, StateBackendStore:
	default:
		return fmt.Errorf("state.backend: unknown backend '%s'", c.State.Backend)
	}

	if err := validateDuration("autoSync.interval", c.AutoSync.Interval); err != nil {
		return err
	}
	if err := validateDuration("autoSync.lockTimeout", c.AutoSync.LockTimeout); err != nil {
		return err
	}

	for i, pattern := range c.Ignore {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("ignore[%d]: pattern cannot be empty", i)
		}
	}
	for i, pattern := range c.Include {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("include[%d]: pattern cannot be empty", i)
		}
	}

	return nil
}

func validateStorage(storage *StorageConfig, db *DatabaseConfig) error {
	switch storage.Type {
	case StorageTypeSQLite:
		if storage.SQLite == nil || storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case StorageTypePostgres:
		if db == nil {
			return fmt.Errorf("database configuration is required for storage type '%s'", StorageTypePostgres)
		}
		if db.Host == "" || db.Database == "" || db.User == "" {
			return fmt.Errorf("database: host, user and database are required")
		}
		if db.ConnMaxLifetime != "" {
			if _, err := time.ParseDuration(db.ConnMaxLifetime); err != nil {
				return fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err)
			}
		}
	default:
		return fmt.Errorf("storage.type: unknown type '%s'", storage.Type)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '2m'): %w", field, err)
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
