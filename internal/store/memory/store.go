package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshdurbin/linkregistry/internal/store"
)

// Store implements store.Backend using in-memory storage
type Store struct {
	data     map[string][]byte
	counters map[string]int64
	mutex    sync.RWMutex
	closed   bool
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		data:     make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

// Get retrieves the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	value, exists := s.data[key]
	if !exists {
		return nil, store.ErrKeyNotFound
	}

	// Return a copy to prevent external modification
	return append([]byte(nil), value...), nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	// Store a copy to prevent external modification
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	delete(s.data, key)
	return nil
}

// NextCounter increments and returns the counter for key
func (s *Store) NextCounter(ctx context.Context, key string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	s.counters[key]++
	return s.counters[key], nil
}

// Close marks the store closed; later operations fail
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	return nil
}

// Ensure Store implements the interfaces
var _ store.KeyValueStore = (*Store)(nil)
var _ store.Backend = (*Store)(nil)
