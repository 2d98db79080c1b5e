package lidar

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/lidarsim/internal/geom"
	"github.com/banshee-data/lidarsim/internal/monitoring"
	"github.com/banshee-data/lidarsim/internal/timeutil"
)

// ErrSensorClosed is returned by Step after Close.
var ErrSensorClosed = errors.New("sensor is closed")

// SensorState is the mutable part of a sensor session.
type SensorState struct {
	Azimuth float64
	Ticks   uint64
	SimTime float64
}

// SensorDeps are the collaborators a sensor is composed with.
type SensorDeps struct {
	// World answers ray queries. Required.
	World RangeQuery
	// Renderer supplies the colour view used for intensity. When nil every
	// beam reports intensity 0.
	Renderer Renderer
	// Poses reports the body pose each tick. Defaults to the world origin.
	Poses PoseSource
	// Rand drives dropout and noise draws. Defaults to a generator seeded
	// from the clock; inject a seeded one for reproducible runs.
	Rand *rand.Rand
	// Sink receives each assembled frame. Optional.
	Sink FrameSink
	// Clock backs real-clock timestamps. Defaults to the wall clock.
	Clock timeutil.Clock
	// Metrics is optional.
	Metrics *monitoring.SensorCollector
}

// Sensor is a spinning multi-beam range sensor. It is not safe for
// concurrent use; one host loop calls Step.
type Sensor struct {
	cfg        SensorConfig
	elevations []float64
	dropout    DropoutModel
	noise      RangeNoiseModel
	intensity  IntensityEstimator

	world    RangeQuery
	renderer Renderer
	poses    PoseSource
	rng      *rand.Rand
	sink     FrameSink
	metrics  *monitoring.SensorCollector

	azimuth float64
	time    *TimeBase
	closed  bool
	warn    monitoring.Once
}

// NewSensor validates cfg and composes a sensor at azimuth 0 and sim time 0.
func NewSensor(cfg SensorConfig, deps SensorDeps) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.World == nil {
		return nil, fmt.Errorf("failed to create sensor: no range query provided")
	}
	clock := deps.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	poses := deps.Poses
	if poses == nil {
		poses = StaticPose{}
	}
	rng := deps.Rand
	if rng == nil {
		seed := uint64(clock.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	s := &Sensor{
		cfg:        cfg,
		elevations: Elevations(cfg),
		dropout: DropoutModel{
			MaxRange:      cfg.MaxRange,
			Amplitude:     cfg.DropoutAmplitude,
			FalloffStdDev: cfg.FalloffStdDev,
		},
		noise:     RangeNoiseModel{Accuracy: cfg.RangeAccuracy},
		intensity: IntensityEstimator{AngleWeight: cfg.AngleWeight},
		world:     deps.World,
		renderer:  deps.Renderer,
		poses:     poses,
		rng:       rng,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		time:      NewTimeBase(cfg, clock),
	}

	if fov, capped := CaptureFOV(cfg); capped {
		s.warn.Logf("fov", "[lidar] Warning: elevation span %.2f° exceeds the capture camera; FOV capped at %.0f°, beams near the fan edges will report intensity 0",
			cfg.ElevationSpan(), fov)
	}
	if s.renderer == nil {
		s.warn.Logf("renderer", "[lidar] Warning: no renderer configured; all intensities will be 0")
	}
	return s, nil
}

// Config returns the sensor's configuration.
func (s *Sensor) Config() SensorConfig { return s.cfg }

// State returns a snapshot of the mutable state.
func (s *Sensor) State() SensorState {
	return SensorState{
		Azimuth: s.azimuth,
		Ticks:   s.time.Ticks(),
		SimTime: s.time.SimTime(),
	}
}

// Step runs one tick: it advances a moving pose source by dt, casts every
// beam at the current azimuth, applies dropout, noise and intensity,
// assembles output points and hands the frame to the sink. The azimuth and
// simulated time then move on by one tick, whatever dt was.
//
// Sink failures do not fail the step: the frame is still returned, a
// warning is logged once per outage and the failure is counted.
func (s *Sensor) Step(dt time.Duration) (*FrameRecord, error) {
	if s.closed {
		return nil, ErrSensorClosed
	}
	if adv, ok := s.poses.(Advancer); ok {
		adv.Advance(dt)
	}

	pose := s.poses.Pose()
	view := s.render(pose)
	frame := s.sample(pose, view)

	s.write(frame)
	// Without a view every hit is dark; that is counted as a render failure.
	outOfView := 0
	if view != nil {
		outOfView = countOutOfView(frame)
	}
	s.metrics.ObserveTick(len(frame.Samples), frame.Hits(), countDropped(frame), outOfView, frame.Azimuth, frame.Timestamp)

	s.azimuth = NextAzimuth(s.azimuth, s.cfg.AngularResolution)
	s.time.Advance()
	return frame, nil
}

func (s *Sensor) sample(pose geom.Pose, view *RenderedView) *FrameRecord {
	axes := pose.Axes()
	origin := BeamOrigin(pose, s.cfg.BeamOriginOffset)

	frame := &FrameRecord{
		Tick:      s.time.Ticks(),
		Timestamp: s.time.Timestamp(),
		Azimuth:   s.azimuth,
		Pose:      pose,
		Origin:    origin,
		Samples:   make([]BeamSample, len(s.elevations)),
	}

	for i, elevation := range s.elevations {
		smp := &frame.Samples[i]
		smp.Elevation = elevation
		smp.Direction = BeamDirection(s.azimuth, elevation, axes)

		hit := s.world.Cast(origin, smp.Direction, s.cfg.MaxRange)
		if hit.Hit {
			smp.Hit = true
			smp.ImpactPoint = hit.Point
			smp.ImpactNormal = hit.Normal
			smp.RawDistance = hit.Distance
			smp.Distance = hit.Distance
		}

		s.dropout.Apply(smp, s.rng)
		if smp.Hit {
			smp.Incidence = Incidence(smp.Direction, smp.ImpactNormal)
			s.noise.Apply(smp, s.rng)
			smp.Intensity, smp.InView = s.intensity.Estimate(view, smp.ImpactPoint, smp.Incidence)
		}
		AssemblePoint(smp, pose, s.cfg.UseLocalCoordinates)
	}
	return frame
}

// render captures the colour view for this tick. Any failure degrades to a
// nil view, which yields intensity 0 for every beam.
func (s *Sensor) render(pose geom.Pose) *RenderedView {
	if s.renderer == nil {
		return nil
	}
	view, err := s.renderer.Render(CaptureCamera(s.cfg, pose, s.azimuth))
	if err != nil {
		s.metrics.IncRenderFailures()
		s.warn.Logf("render", "[lidar] Warning: failed to render intensity view, intensities will be 0: %v", err)
		return nil
	}
	s.warn.Reset("render")
	return view
}

func (s *Sensor) write(frame *FrameRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.WriteFrame(frame); err != nil {
		s.metrics.IncSinkFailures()
		s.warn.Logf("sink", "[lidar] Warning: frame %d was not recorded: %v", frame.Tick, err)
		return
	}
	s.warn.Reset("sink")
}

// Close stops the sensor and closes its sink. It is safe to call twice.
func (s *Sensor) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.sink == nil {
		return nil
	}
	if err := s.sink.Close(); err != nil {
		return fmt.Errorf("failed to close frame sink: %w", err)
	}
	return nil
}

func countDropped(f *FrameRecord) int {
	n := 0
	for i := range f.Samples {
		if f.Samples[i].Dropped {
			n++
		}
	}
	return n
}

func countOutOfView(f *FrameRecord) int {
	n := 0
	for i := range f.Samples {
		if f.Samples[i].Hit && !f.Samples[i].InView {
			n++
		}
	}
	return n
}
