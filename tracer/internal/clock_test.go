package internal

import (
	"sync"
	"time"
)

// mockClock is a clock that only moves when told to.
type mockClock struct {
	mu sync.Mutex
	t  time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{t: t}
}

func (c *mockClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mockClock) add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var epoch = time.Unix(1500000000, 0)
