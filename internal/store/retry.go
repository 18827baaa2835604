package store

import (
	"context"
	"errors"
	"fmt"
)

// retryStore retries failed operations a bounded number of times, immediately
type retryStore struct {
	KeyValueStore
	attempts int
}

// WithRetry wraps kv so every operation is attempted up to attempts times
// before the last error is returned. ErrKeyNotFound and context errors are
// not retried.
func WithRetry(kv KeyValueStore, attempts int) KeyValueStore {
	if attempts <= 1 {
		return kv
	}
	return &retryStore{KeyValueStore: kv, attempts: attempts}
}

// Get retrieves a value, retrying transient failures
func (r *retryStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.do(ctx, func() error {
		var err error
		value, err = r.KeyValueStore.Get(ctx, key)
		return err
	})
	return value, err
}

// Set stores a value, retrying transient failures
func (r *retryStore) Set(ctx context.Context, key string, value []byte) error {
	return r.do(ctx, func() error {
		return r.KeyValueStore.Set(ctx, key, value)
	})
}

// Delete removes a value, retrying transient failures
func (r *retryStore) Delete(ctx context.Context, key string) error {
	return r.do(ctx, func() error {
		return r.KeyValueStore.Delete(ctx, key)
	})
}

func (r *retryStore) do(ctx context.Context, op func() error) error {
	var err error
	attempt := 0
	for attempt < r.attempts {
		attempt++
		err = op()
		if err == nil || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempt, err)
}

func retryable(err error) bool {
	return !errors.Is(err, ErrKeyNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
