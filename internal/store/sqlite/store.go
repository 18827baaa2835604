package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/joshdurbin/linkregistry/internal/store"
)

// Supported database/sql driver names
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
	DriverLibSQL = "libsql"  // remote libSQL / Turso databases
)

// Drivers lists every accepted driver name
var Drivers = []string{DriverCGO, DriverPureGo, DriverLibSQL}

// Store implements store.Backend using SQLite
type Store struct {
	db     *sql.DB
	driver string
}

// New creates a new SQLite store at databasePath using the default driver
func New(databasePath string) (*Store, error) {
	return NewWithDriver(DriverCGO, databasePath)
}

// NewWithDriver opens dsn with the named driver and applies pending migrations
func NewWithDriver(driver, dsn string) (*Store, error) {
	if !isSupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver != DriverLibSQL {
		// One connection: SQLite has a single writer, and a :memory: database
		// exists only on the connection that created it.
		db.SetMaxOpenConns(1)

		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}

		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	s := &Store{
		db:     db,
		driver: driver,
	}

	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Get retrieves the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return []byte(value), nil
}

// Set stores value under key, replacing any previous value
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// NextCounter atomically increments and returns the counter for key
func (s *Store) NextCounter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (key, value, updated_at) VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = value + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING value`, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return value, nil
}

// Driver returns the database/sql driver name in use
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func isSupportedDriver(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

// Ensure Store implements the interfaces
var _ store.KeyValueStore = (*Store)(nil)
var _ store.Backend = (*Store)(nil)
