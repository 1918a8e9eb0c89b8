package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant returned by a new DeterministicClock.
var DefaultEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// DeterministicClock is a thread-safe fake wall clock for tests.
//
// Every call to Now() returns the current instant and then advances it by
// Step, so consecutive records get distinct, predictable created_at values.
// A zero Step freezes the clock, which is how tests exercise tie handling.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock at DefaultEpoch stepping one second.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{now: DefaultEpoch, step: time.Second}
}

// NewFrozenClock creates a clock that always returns at.
func NewFrozenClock(at time.Time) *DeterministicClock {
	return &DeterministicClock{now: at}
}

// Now returns the current instant and advances the clock by its step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next instant Now() will return, without advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *DeterministicClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Reset returns the clock to DefaultEpoch.
func (c *DeterministicClock) Reset() {
	c.Set(DefaultEpoch)
}
