package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if now := clock.Now(); !now.Equal(fixedTime) {
		t.Errorf("got %v, want %v", now, fixedTime)
	}
}

func TestMockClock_AdvanceAndSince(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(1500 * time.Millisecond)

	if got := clock.Since(start); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v, want 1.5s", got)
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Sleep(25 * time.Millisecond)
	clock.Sleep(0)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 25*time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := clock.Since(start); got != 25*time.Millisecond {
		t.Errorf("clock advanced by %v, want 25ms", got)
	}
}

func TestFrameLimiter_Unlimited(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	l := NewFrameLimiter(clock, 0)
	for i := 0; i < 5; i++ {
		l.Wait()
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("unlimited limiter slept: %v", clock.Sleeps())
	}
}

func TestFrameLimiter_SleepsUpToPeriod(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	l := NewFrameLimiter(clock, 40)
	if l.Period() != 25*time.Millisecond {
		t.Fatalf("Period() = %v, want 25ms", l.Period())
	}

	l.Wait() // first call never sleeps
	clock.Advance(10 * time.Millisecond)
	l.Wait()

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 15*time.Millisecond {
		t.Errorf("Sleeps() = %v, want [15ms]", sleeps)
	}
}

func TestFrameLimiter_NoBurstAfterStall(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	l := NewFrameLimiter(clock, 100)

	l.Wait()
	clock.Advance(time.Second) // long stall
	l.Wait()
	l.Wait()

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 10*time.Millisecond {
		t.Errorf("Sleeps() = %v, want a single 10ms sleep after the stall", sleeps)
	}
}
