package lidar

import (
	"time"

	"github.com/banshee-data/lidarsim/internal/timeutil"
)

// TimeBase produces frame timestamps. Simulated time advances by exactly
// one sim-rate period per tick no matter how long the tick took; the real
// clock is only consulted when real-clock timestamps are configured.
type TimeBase struct {
	simFrameRate float64
	useRealClock bool
	ticks        uint64
	clock        timeutil.Clock
	start        time.Time
}

// NewTimeBase starts both clocks at zero. A nil clock uses the wall clock.
func NewTimeBase(cfg SensorConfig, clock timeutil.Clock) *TimeBase {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &TimeBase{
		simFrameRate: cfg.SimFrameRate,
		useRealClock: cfg.UseRealClockTimestamps,
		clock:        clock,
		start:        clock.Now(),
	}
}

// SimTime is the simulated time in seconds. It is derived from the tick
// count rather than summed so long sessions do not drift.
func (tb *TimeBase) SimTime() float64 {
	return float64(tb.ticks) / tb.simFrameRate
}

// RealTime is the wall time in seconds since the session started.
func (tb *TimeBase) RealTime() float64 {
	return tb.clock.Since(tb.start).Seconds()
}

// Timestamp is the value recorded for the current tick.
func (tb *TimeBase) Timestamp() float64 {
	if tb.useRealClock {
		return tb.RealTime()
	}
	return tb.SimTime()
}

// Advance moves simulated time forward by one tick.
func (tb *TimeBase) Advance() {
	tb.ticks++
}

// Ticks is the number of completed ticks.
func (tb *TimeBase) Ticks() uint64 {
	return tb.ticks
}
