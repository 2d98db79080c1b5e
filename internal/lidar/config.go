package lidar

import (
	"fmt"
	"math"
	"strings"
)

// SensorConfig holds the immutable parameters of one sensor session.
// Lengths are in centimetres and angles in degrees.
type SensorConfig struct {
	// MaxRange is the raycast length and the centre of the dropout curve.
	MaxRange float64
	// BeamCount is the number of beams in the vertical fan.
	BeamCount int
	// MaxElevation is the elevation of the highest beam.
	MaxElevation float64
	// MinElevation is the elevation of the lowest beam.
	MinElevation float64
	// AngularResolution is the azimuth advance per tick.
	AngularResolution float64
	// RangeAccuracy scales the standard deviation of range noise.
	RangeAccuracy float64
	// BeamOriginOffset places the beam origin this far along the sensor up axis.
	BeamOriginOffset float64
	// DropoutAmplitude is the probability of losing a return exactly at MaxRange.
	DropoutAmplitude float64
	// FalloffStdDev is the width of the dropout curve; zero disables dropout.
	FalloffStdDev float64
	// AngleWeight blends intensity between fully incidence-attenuated (1)
	// and unattenuated (0).
	AngleWeight float64
	// UseLocalCoordinates writes hit points in the sensor frame instead of world.
	UseLocalCoordinates bool
	// UseRealClockTimestamps stamps frames with wall time since session start.
	UseRealClockTimestamps bool
	// SimFrameRate is the tick rate the sensor would run at in real time.
	SimFrameRate float64
	// RealFrameRateCap throttles the host loop; zero means uncapped.
	RealFrameRateCap float64
	// RenderWidth and RenderHeight size the colour buffer used for intensity.
	RenderWidth  int
	RenderHeight int
}

// DefaultSensorConfig returns the parameters of a Velodyne HDL-32E class sensor.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		MaxRange:          10000,
		BeamCount:         32,
		MaxElevation:      10.67,
		MinElevation:      -30.67,
		AngularResolution: 0.4,
		RangeAccuracy:     2,
		BeamOriginOffset:  7.21,
		DropoutAmplitude:  1,
		FalloffStdDev:     10,
		AngleWeight:       1,
		SimFrameRate:      18000,
		RealFrameRateCap:  40,
		RenderWidth:       512,
		RenderHeight:      512,
	}
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid sensor configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks every field and reports all problems together.
// It returns nil when the configuration is usable.
func (c SensorConfig) Validate() error {
	var problems []string
	add := func(format string, v ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, v...))
	}

	// Comparisons are written so NaN fails them.
	if !(c.MaxRange > 0) || math.IsInf(c.MaxRange, 0) {
		add("range must be a positive finite distance, got %v", c.MaxRange)
	}
	if c.BeamCount < 1 {
		add("beam count must be at least 1, got %d", c.BeamCount)
	}
	if !(c.MaxElevation >= -180 && c.MaxElevation <= 180) {
		add("max elevation must be within [-180, 180] degrees, got %v", c.MaxElevation)
	}
	if !(c.MinElevation >= -180 && c.MinElevation <= 180) {
		add("min elevation must be within [-180, 180] degrees, got %v", c.MinElevation)
	}
	if c.MinElevation > c.MaxElevation {
		add("min elevation %v must not exceed max elevation %v", c.MinElevation, c.MaxElevation)
	}
	if !(c.AngularResolution > 0 && c.AngularResolution <= 360) {
		add("angular resolution must be within (0, 360] degrees, got %v", c.AngularResolution)
	}
	if !(c.RangeAccuracy >= 0) || math.IsInf(c.RangeAccuracy, 0) {
		add("range accuracy must be a non-negative finite value, got %v", c.RangeAccuracy)
	}
	if math.IsNaN(c.BeamOriginOffset) || math.IsInf(c.BeamOriginOffset, 0) {
		add("beam origin offset must be finite, got %v", c.BeamOriginOffset)
	}
	if !(c.DropoutAmplitude >= 0 && c.DropoutAmplitude <= 1) {
		add("dropout amplitude must be within [0, 1], got %v", c.DropoutAmplitude)
	}
	if !(c.FalloffStdDev >= 0) {
		add("falloff std dev must be non-negative, got %v", c.FalloffStdDev)
	}
	if !(c.AngleWeight >= 0 && c.AngleWeight <= 1) {
		add("angle weight must be within [0, 1], got %v", c.AngleWeight)
	}
	if !(c.SimFrameRate > 0) || math.IsInf(c.SimFrameRate, 0) {
		add("sim frame rate must be positive, got %v", c.SimFrameRate)
	}
	if !(c.RealFrameRateCap >= 0) {
		add("real frame rate cap must be non-negative (0 disables the cap), got %v", c.RealFrameRateCap)
	}
	if c.RenderWidth < 1 || c.RenderHeight < 1 {
		add("render target must be at least 1x1 pixels, got %dx%d", c.RenderWidth, c.RenderHeight)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ElevationSpan is the absolute vertical extent of the beam fan.
func (c SensorConfig) ElevationSpan() float64 {
	return math.Abs(c.MaxElevation - c.MinElevation)
}

// SimTimeStep is the simulated time between ticks, in seconds.
func (c SensorConfig) SimTimeStep() float64 {
	return 1 / c.SimFrameRate
}

// TimeDilation is the simulated seconds that pass per wall-clock second
// when the host loop runs at the real frame-rate cap. It is zero when
// uncapped.
func (c SensorConfig) TimeDilation() float64 {
	if c.RealFrameRateCap <= 0 {
		return 0
	}
	return c.RealFrameRateCap / c.SimFrameRate
}
