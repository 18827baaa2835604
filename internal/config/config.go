package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/joshdurbin/linkregistry/internal/logging"
	"github.com/joshdurbin/linkregistry/internal/shortener"
)

// Prefix is prepended to every environment variable, e.g. LINKREGISTRY_PORT
const Prefix = "LINKREGISTRY"

// Storage backends
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

var (
	storageBackends = []string{StorageMemory, StorageSQLite, StoragePostgres}
	sqliteDrivers   = []string{"sqlite3", "sqlite", "libsql"}
	logFormats      = []string{logging.FormatText, logging.FormatJSON}
	generatorTypes  = []string{shortener.TypeRandom, shortener.TypeCounter}
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Registry  RegistryConfig
	Logging   LoggingConfig
	Shortener shortener.Config
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ServerURL       string        `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// StorageConfig selects and configures the persistent store
type StorageConfig struct {
	Backend          string `envconfig:"STORAGE" default:"sqlite"`
	SQLitePath       string `envconfig:"SQLITE_PATH" default:"links.db"`
	SQLiteDriver     string `envconfig:"SQLITE_DRIVER" default:"sqlite3"`
	PostgresDSN      string `envconfig:"POSTGRES_DSN"`
	PostgresMaxConns int32  `envconfig:"POSTGRES_MAX_CONNS" default:"4"`
	Key              string `envconfig:"STORAGE_KEY" default:"url_shortener_data"`
	PersistAttempts  int    `envconfig:"PERSIST_ATTEMPTS" default:"2"`
}

// RegistryConfig holds registry maintenance configuration. A zero interval
// disables the maintenance loop.
type RegistryConfig struct {
	MaintenanceInterval time.Duration `envconfig:"MAINTENANCE_INTERVAL" default:"1m"`
	AutoPurge           bool          `envconfig:"AUTO_PURGE" default:"false"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"text"`
	Verbose    bool   `envconfig:"VERBOSE" default:"false"`
	BufferSize int    `envconfig:"LOG_BUFFER_SIZE" default:"500"`
}

// Load reads the configuration from LINKREGISTRY_* environment variables,
// applying defaults for anything unset. It does not validate; callers apply
// their overrides and then call Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(Prefix, &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if err := envconfig.Process(Prefix, &cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	if err := envconfig.Process(Prefix, &cfg.Registry); err != nil {
		return nil, fmt.Errorf("failed to load registry config: %w", err)
	}
	if err := envconfig.Process(Prefix, &cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	if err := envconfig.Process(Prefix, &cfg.Shortener); err != nil {
		return nil, fmt.Errorf("failed to load shortener config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}
	if c.Registry.MaintenanceInterval < 0 {
		return fmt.Errorf("invalid registry config: maintenance interval cannot be negative, got: %v", c.Registry.MaintenanceInterval)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if !slices.Contains(generatorTypes, c.Shortener.Type) {
		return fmt.Errorf("invalid shortener config: unknown generator type: %s", c.Shortener.Type)
	}
	if c.Shortener.CounterStep < 1 {
		return fmt.Errorf("invalid shortener config: counter step must be at least 1, got: %d", c.Shortener.CounterStep)
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if c.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got: %v", c.ShutdownTimeout)
	}
	return nil
}

func (c *StorageConfig) validate() error {
	if !slices.Contains(storageBackends, c.Backend) {
		return fmt.Errorf("unknown storage backend: %s (must be one of: memory, sqlite, postgres)", c.Backend)
	}

	switch c.Backend {
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
		if !slices.Contains(sqliteDrivers, c.SQLiteDriver) {
			return fmt.Errorf("unknown sqlite driver: %s (must be one of: sqlite3, sqlite, libsql)", c.SQLiteDriver)
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required for the postgres backend")
		}
	}

	if c.Key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if c.PersistAttempts <= 0 {
		return fmt.Errorf("persist attempts must be positive, got: %d", c.PersistAttempts)
	}
	return nil
}

func (c *LoggingConfig) validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("unknown log format: %s (must be one of: text, json)", c.Format)
	}
	return nil
}
