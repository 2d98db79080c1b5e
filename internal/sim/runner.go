// Package sim drives a sensor the way a game loop would: one Step per
// frame, throttled to a wall-clock frame-rate cap.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/banshee-data/lidarsim/internal/lidar"
	"github.com/banshee-data/lidarsim/internal/timeutil"
)

// Stepper is the part of a sensor the runner drives.
type Stepper interface {
	Config() lidar.SensorConfig
	Step(dt time.Duration) (*lidar.FrameRecord, error)
	Close() error
}

// RunnerConfig controls a run.
type RunnerConfig struct {
	// Ticks stops the run after this many steps. Zero runs until the
	// context is cancelled.
	Ticks uint64
	// ProgressEvery logs a progress line every N ticks. Zero disables it.
	ProgressEvery uint64
	// Clock throttles the loop. Defaults to the wall clock.
	Clock timeutil.Clock
	// OnFrame, when set, sees every frame after the sensor has written it.
	OnFrame func(*lidar.FrameRecord)
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Summary describes a finished run.
type Summary struct {
	Ticks   uint64
	Hits    int
	Beams   int
	SimTime time.Duration
	Wall    time.Duration
	// Dilation is the configured ratio of simulated to wall time.
	Dilation float64
}

// MeasuredDilation is the ratio of simulated to wall time the run achieved.
func (s Summary) MeasuredDilation() float64 {
	if s.Wall <= 0 {
		return 0
	}
	return s.SimTime.Seconds() / s.Wall.Seconds()
}

// HitRatio is the fraction of beams that produced a return.
func (s Summary) HitRatio() float64 {
	if s.Beams == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Beams)
}

// Runner owns the sensor for the length of a run and closes it at the end.
type Runner struct {
	sensor  Stepper
	cfg     RunnerConfig
	clock   timeutil.Clock
	limiter *timeutil.FrameLimiter
	fps     float64
	logger  *log.Logger
}

// NewRunner builds a runner whose simulated step is one sim-rate period
// and whose loop is capped at the sensor's real frame-rate cap.
func NewRunner(sensor Stepper, cfg RunnerConfig) (*Runner, error) {
	if sensor == nil {
		return nil, errors.New("runner needs a sensor")
	}
	scfg := sensor.Config()
	if scfg.SimFrameRate <= 0 {
		return nil, fmt.Errorf("invalid sim frame rate %v", scfg.SimFrameRate)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		sensor:  sensor,
		cfg:     cfg,
		clock:   clock,
		limiter: timeutil.NewFrameLimiter(clock, scfg.RealFrameRateCap),
		fps:     scfg.SimFrameRate,
		logger:  logger,
	}, nil
}

// StepDuration is the nominal simulated time per tick, to the nearest
// nanosecond.
func (r *Runner) StepDuration() time.Duration {
	return r.elapsed(1)
}

// elapsed is the simulated time after ticks steps, to the nearest
// nanosecond. Per-tick steps are differences of elapsed so rounding never
// accumulates.
func (r *Runner) elapsed(ticks uint64) time.Duration {
	return time.Duration(math.Round(float64(ticks) * float64(time.Second) / r.fps))
}

// Run steps the sensor until the tick budget is spent or ctx is cancelled,
// then closes the sensor. A cancelled run returns its summary together with
// ctx.Err().
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	scfg := r.sensor.Config()
	sum := Summary{Dilation: scfg.TimeDilation()}
	start := r.clock.Now()

	if sum.Dilation > 0 {
		r.logger.Printf("[sim] time dilation %.6f (%.0f fps capped to %.0f fps)",
			sum.Dilation, scfg.SimFrameRate, scfg.RealFrameRateCap)
	}

	runErr := r.loop(ctx, &sum)

	sum.Wall = r.clock.Since(start)
	sum.SimTime = r.elapsed(sum.Ticks)
	r.logger.Printf("[sim] finished after %d ticks: %d/%d hits, %v simulated in %v",
		sum.Ticks, sum.Hits, sum.Beams, sum.SimTime, sum.Wall)

	if err := r.sensor.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to close sensor: %w", err))
	}
	return sum, runErr
}

func (r *Runner) loop(ctx context.Context, sum *Summary) error {
	for r.cfg.Ticks == 0 || sum.Ticks < r.cfg.Ticks {
		select {
		case <-ctx.Done():
			r.logger.Printf("[sim] stopping due to context cancellation (%d ticks)", sum.Ticks)
			return ctx.Err()
		default:
		}

		r.limiter.Wait()
		dt := r.elapsed(sum.Ticks+1) - r.elapsed(sum.Ticks)
		frame, err := r.sensor.Step(dt)
		if err != nil {
			return fmt.Errorf("failed to step sensor at tick %d: %w", sum.Ticks, err)
		}
		sum.Ticks++
		sum.Hits += frame.Hits()
		sum.Beams += len(frame.Samples)
		if r.cfg.OnFrame != nil {
			r.cfg.OnFrame(frame)
		}
		if r.cfg.ProgressEvery > 0 && sum.Ticks%r.cfg.ProgressEvery == 0 {
			r.logger.Printf("[sim] tick %d azimuth %.2f timestamp %.6f hits %d/%d",
				frame.Tick, frame.Azimuth, frame.Timestamp, frame.Hits(), len(frame.Samples))
		}
	}
	return nil
}
