package dispatch

import "sync/atomic"

// Clock is a monotonic logical clock. Every apply is stamped with a strictly
// increasing sequence number, so ordering never depends on wall time and a
// replay reproduces the same numbers.
//
// Clock is safe for concurrent use, although in practice only the
// designated context calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1. Used to resume
// numbering after the last logged apply.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
