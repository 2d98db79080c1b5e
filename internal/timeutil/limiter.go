package timeutil

import (
	"time"
)

// FrameLimiter caps how often a loop body may run. It only throttles
// execution; it never feeds back into recorded timestamps.
type FrameLimiter struct {
	clock  Clock
	period time.Duration
	next   time.Time
}

// NewFrameLimiter returns a limiter allowing at most fps iterations per
// second of wall time. A non-positive fps disables limiting.
func NewFrameLimiter(clock Clock, fps float64) *FrameLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	var period time.Duration
	if fps > 0 {
		period = time.Duration(float64(time.Second) / fps)
	}
	return &FrameLimiter{clock: clock, period: period}
}

// Period returns the minimum wall time between iterations (0 when unlimited).
func (l *FrameLimiter) Period() time.Duration {
	return l.period
}

// Wait blocks until the next iteration is allowed. The first call returns
// immediately. If the loop has fallen behind, the schedule restarts from
// now rather than bursting to catch up.
func (l *FrameLimiter) Wait() {
	if l.period <= 0 {
		return
	}
	now := l.clock.Now()
	if l.next.IsZero() {
		l.next = now.Add(l.period)
		return
	}
	if wait := l.next.Sub(now); wait > 0 {
		l.clock.Sleep(wait)
		l.next = l.next.Add(l.period)
		return
	}
	l.next = now.Add(l.period)
}
