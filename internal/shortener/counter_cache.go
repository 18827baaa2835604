package shortener

import (
	"context"
	"fmt"
	"sync"
)

// CounterCache hands out counters from blocks reserved in the underlying
// provider, so the store is written once per step counters instead of once
// per code. The provider's counter counts blocks: block n covers
// ((n-1)*step, n*step]. Counters left in a block at shutdown are skipped.
type CounterCache struct {
	mu       sync.Mutex
	provider CounterProvider
	step     int64
	blocks   map[string]*counterBlock
}

type counterBlock struct {
	next  int64
	limit int64
}

// NewCounterCache wraps provider, reserving step counters at a time
func NewCounterCache(provider CounterProvider, step int64) *CounterCache {
	if step < 1 {
		step = 1
	}
	return &CounterCache{
		provider: provider,
		step:     step,
		blocks:   make(map[string]*counterBlock),
	}
}

// NextCounter returns the next counter for key, reserving a new block when the current one is used up
func (c *CounterCache) NextCounter(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block, exists := c.blocks[key]
	if !exists || block.next > block.limit {
		n, err := c.provider.NextCounter(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("failed to reserve counter block: %w", err)
		}

		block = &counterBlock{
			next:  (n-1)*c.step + 1,
			limit: n * c.step,
		}
		c.blocks[key] = block
	}

	value := block.next
	block.next++
	return value, nil
}

// Step returns the block size
func (c *CounterCache) Step() int64 {
	return c.step
}

// Ensure CounterCache implements CounterProvider
var _ CounterProvider = (*CounterCache)(nil)
