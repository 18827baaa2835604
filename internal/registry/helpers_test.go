package registry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// testGenerator hands out test0001, test0002, ... skipping codes already in use
type testGenerator struct {
	mu      sync.Mutex
	counter int
}

func (g *testGenerator) Generate(ctx context.Context, existing map[string]struct{}) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		g.counter++
		code := fmt.Sprintf("test%04d", g.counter)
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
}

func (g *testGenerator) Type() string {
	return "test"
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticEnvironment struct {
	location string
	agent    string
}

func (e staticEnvironment) Location() string  { return e.location }
func (e staticEnvironment) UserAgent() string { return e.agent }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func intPtr(v int) *int {
	return &v
}
