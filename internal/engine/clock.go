package engine

import (
	"sync/atomic"
	"time"
)

// Clock hands out strictly increasing nanosecond timestamps measured from
// its creation on the monotonic clock.
type Clock struct {
	base time.Time
	last atomic.Int64
}

func NewClock() *Clock {
	return &Clock{base: time.Now()}
}

func (c *Clock) Now() int64 {
	elapsed := time.Since(c.base).Nanoseconds()
	for {
		last := c.last.Load()
		next := max(elapsed, last+1)
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
