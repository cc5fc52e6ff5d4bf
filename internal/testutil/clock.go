package testutil

import (
	"sync"
	"time"
)

// NowAt returns a clock function fixed at t.
func NowAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ManualClock only moves when the test says so. Safe to share with loop
// goroutines.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
