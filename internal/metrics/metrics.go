package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

// Ratio is c over c plus other, zero when both are zero.
func (c *Counter) Ratio(other *Counter) float64 {
	a, b := c.Load(), other.Load()
	if a+b == 0 {
		return 0
	}
	return float64(a) / float64(a+b)
}

// Timer measures one request.
type Timer struct {
	start time.Time
	now   func() time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now(), now: time.Now}
}

func (t *Timer) Duration() time.Duration {
	return t.now().Sub(t.start)
}
