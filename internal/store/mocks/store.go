package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// KeyValueStore is a mock implementation of store.KeyValueStore
type KeyValueStore struct {
	mock.Mock
}

// Get retrieves the value stored under key
func (m *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Set stores value under key
func (m *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// Delete removes key
func (m *KeyValueStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Close closes the store
func (m *KeyValueStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
