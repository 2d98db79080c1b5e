package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorCollector_ObserveTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSensorCollector(reg)
	require.NoError(t, err)

	c.ObserveTick(32, 20, 3, 1, 0.4, 0.01)
	c.ObserveTick(32, 18, 2, 0, 0.8, 0.02)
	c.IncSinkFailures()
	c.IncRenderFailures()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks))
	assert.Equal(t, 64.0, testutil.ToFloat64(c.Beams))
	assert.Equal(t, 38.0, testutil.ToFloat64(c.Hits))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.Dropouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IntensityMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SinkFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RenderFailures))
	assert.InDelta(t, 0.8, testutil.ToFloat64(c.Azimuth), 1e-12)
	assert.InDelta(t, 0.02, testutil.ToFloat64(c.TimestampSeconds), 1e-12)

	families, err := c.Gatherer().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 9)
}

func TestSensorCollector_ReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSensorCollector(reg)
	require.NoError(t, err)
	second, err := NewSensorCollector(reg)
	require.NoError(t, err)

	first.ObserveTick(1, 1, 0, 0, 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Ticks), "second collector should share the registered counters")
}

func TestSensorCollector_NilSafe(t *testing.T) {
	var c *SensorCollector
	assert.NotPanics(t, func() {
		c.ObserveTick(1, 1, 1, 1, 1, 1)
		c.IncSinkFailures()
		c.IncRenderFailures()
	})
	assert.Nil(t, c.Gatherer())
}
