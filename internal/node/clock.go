package node

import "sync/atomic"

// Clock is the per-master monotonic logical clock.
//
// Every committed mutation is stamped with a strictly increasing seq from
// its owner's clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay of a journal produces identical order
// - Consumers can detect missed or reordered events
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though a master's mutex means only one mutation stamps at a time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when resuming a master from a replayed journal position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
