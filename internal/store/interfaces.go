package store

import (
	"context"
	"errors"

	"github.com/joshdurbin/linkregistry/internal/shortener"
)

// DefaultKey is the storage key the registry snapshot lives under
const DefaultKey = "url_shortener_data"

// ErrKeyNotFound is returned by Get when nothing is stored under the key
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore defines the interface for durable key-value persistence
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources
	Close() error
}

// Backend is a KeyValueStore that can also hand out generator counters
type Backend interface {
	KeyValueStore
	shortener.CounterProvider
}
