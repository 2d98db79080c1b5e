package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SensorCollector exposes per-sensor simulation metrics. All methods are
// safe to call on a nil collector so the sensor can run without metrics.
type SensorCollector struct {
	gatherer prometheus.Gatherer

	Ticks            prometheus.Counter
	Beams            prometheus.Counter
	Hits             prometheus.Counter
	Dropouts         prometheus.Counter
	IntensityMisses  prometheus.Counter
	SinkFailures     prometheus.Counter
	RenderFailures   prometheus.Counter
	Azimuth          prometheus.Gauge
	TimestampSeconds prometheus.Gauge
}

// NewSensorCollector registers sensor metrics against the provided registerer.
func NewSensorCollector(reg prometheus.Registerer) (*SensorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SensorCollector{gatherer: gatherer}
	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&c.Ticks, "lidarsim_ticks_total", "Simulation ticks processed by the sensor."},
		{&c.Beams, "lidarsim_beams_total", "Beams cast across all ticks."},
		{&c.Hits, "lidarsim_hits_total", "Beams that produced a return after dropout."},
		{&c.Dropouts, "lidarsim_dropouts_total", "Hits suppressed by the range dropout model."},
		{&c.IntensityMisses, "lidarsim_intensity_out_of_view_total", "Hits whose projected pixel fell outside the rendered image."},
		{&c.SinkFailures, "lidarsim_sink_failures_total", "Frames that could not be persisted to the output sink."},
		{&c.RenderFailures, "lidarsim_render_failures_total", "Ticks without a usable rendered view for intensity."},
	}
	for _, def := range counters {
		counter, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: def.name,
			Help: def.help,
		}), def.name)
		if err != nil {
			return nil, err
		}
		*def.dst = counter
	}

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.Azimuth, "lidarsim_azimuth_degrees", "Current sensor azimuth in degrees."},
		{&c.TimestampSeconds, "lidarsim_timestamp_seconds", "Timestamp recorded for the most recent tick."},
	}
	for _, def := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: def.name,
			Help: def.help,
		}), def.name)
		if err != nil {
			return nil, err
		}
		*def.dst = gauge
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SensorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records the outcome of one tick.
func (c *SensorCollector) ObserveTick(beams, hits, dropouts, outOfView int, azimuth, timestamp float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.Beams.Add(float64(beams))
	c.Hits.Add(float64(hits))
	c.Dropouts.Add(float64(dropouts))
	c.IntensityMisses.Add(float64(outOfView))
	c.Azimuth.Set(azimuth)
	c.TimestampSeconds.Set(timestamp)
}

// IncSinkFailures counts a frame that was computed but not persisted.
func (c *SensorCollector) IncSinkFailures() {
	if c == nil || c.SinkFailures == nil {
		return
	}
	c.SinkFailures.Inc()
}

// IncRenderFailures counts a tick that fell back to zero intensity.
func (c *SensorCollector) IncRenderFailures() {
	if c == nil || c.RenderFailures == nil {
		return
	}
	c.RenderFailures.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
