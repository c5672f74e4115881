package hopper

import "sync/atomic"

// clock is the monotonic logical clock for commit ordering.
//
// Every trajectory entry is stamped with a strictly increasing seq number
// from this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
// - Checkpointed runs resume with no seq reuse
//
// Thread-safety: clock is safe for concurrent use (atomic operations).
// The engine's single-writer design means only the driving goroutine
// typically calls next().
type clock struct {
	seq atomic.Int64
}

// newClock creates a clock starting at 0.
func newClock() *clock {
	return &clock{}
}

// newClockAt creates a clock starting at a specific sequence number.
// Used by Restore to resume from a checkpoint's last known position.
func newClockAt(start int64) *clock {
	c := &clock{}
	c.seq.Store(start)
	return c
}

// next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *clock) next() int64 {
	return c.seq.Add(1)
}

// current returns the current sequence number without incrementing.
// Used when checkpointing.
func (c *clock) current() int64 {
	return c.seq.Load()
}
