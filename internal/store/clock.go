package store

import "sync"

// Clock hands out UTC-millisecond timestamps that are strictly
// non-decreasing across the lifetime of one process (spec invariant I8)
// and strictly increasing when two calls land in the same millisecond,
// rather than relying on wall-clock resolution alone.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() int64
}

// NewClock builds a Clock around the given "wall clock" function, so tests
// can substitute a deterministic source. Production callers pass
// wallClockMillis.
func NewClock(now func() int64) *Clock {
	if now == nil {
		now = wallClockMillis
	}
	return &Clock{now: now}
}

// NowMillis returns the next timestamp, guaranteed strictly greater than
// every value previously returned by this Clock.
func (c *Clock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.now()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}
