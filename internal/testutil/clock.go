package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall-clock start used by deterministic books and scenarios.
var Epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// SteppingClock is a deterministic wall clock for tests.
//
// Each call to Now returns the start time advanced by one more step, so
// date_entered values differ between commits but are identical across runs.
// A zero step freezes the clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewSteppingClock creates a clock whose first reading is start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, step: step}
}

// NewFrozenClock creates a clock that always reads t.
func NewFrozenClock(t time.Time) *SteppingClock {
	return NewSteppingClock(t, 0)
}

// Now returns the next reading. Its method value satisfies engine.WallClock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls reports how many times Now has been read.
func (c *SteppingClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next reading is the start time again.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
