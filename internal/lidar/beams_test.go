package lidar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

const eps = 1e-9

func assertVec(t *testing.T, want, got r3.Vec, delta float64) {
	t.Helper()
	if r3.Norm(r3.Sub(want, got)) > delta {
		t.Errorf("vector = %+v, want %+v (±%g)", got, want, delta)
	}
}

func TestElevations_SingleBeamAtMax(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.BeamCount = 1
	got := Elevations(cfg)
	require.Len(t, got, 1)
	if got[0] != cfg.MaxElevation {
		t.Errorf("single beam elevation = %v, want exactly %v", got[0], cfg.MaxElevation)
	}
}

func TestElevations_HDL32Fan(t *testing.T) {
	cfg := DefaultSensorConfig()
	got := Elevations(cfg)
	require.Len(t, got, 32)

	spacing := (10.67 - -30.67) / 31
	assert.InDelta(t, 1.3335, spacing, 1e-4)
	assert.Equal(t, -30.67, got[0])
	if got[31] != 10.67 {
		t.Errorf("last beam elevation = %v, want exactly 10.67", got[31])
	}
	for i := 1; i < len(got); i++ {
		assert.InDelta(t, spacing, got[i]-got[i-1], 1e-9, "spacing at beam %d", i)
	}
}

func TestElevations_NoBeams(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.BeamCount = 0
	assert.Empty(t, Elevations(cfg))
}

func TestBeamDirection(t *testing.T) {
	world := geom.WorldAxes()
	s := math.Sqrt(0.5)
	tests := []struct {
		name      string
		azimuth   float64
		elevation float64
		want      r3.Vec
	}{
		{"forward", 0, 0, r3.Vec{X: 1}},
		{"straight up", 0, 90, r3.Vec{Z: 1}},
		{"straight down", 0, -90, r3.Vec{Z: -1}},
		{"quarter turn is right", 90, 0, r3.Vec{Y: 1}},
		{"half turn is back", 180, 0, r3.Vec{X: -1}},
		{"azimuth applies after elevation", 90, 45, r3.Vec{Y: s, Z: s}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BeamDirection(tt.azimuth, tt.elevation, world)
			assertVec(t, tt.want, got, eps)
			assert.InDelta(t, 1, r3.Norm(got), eps)
		})
	}
}

func TestBeamDirection_FollowsBodyAxes(t *testing.T) {
	// A body yawed 90° faces world +Y; its beams turn with it.
	axes := geom.Rotator{Yaw: 90}.Axes()
	assertVec(t, r3.Vec{Y: 1}, BeamDirection(0, 0, axes), eps)
	assertVec(t, r3.Vec{X: -1}, BeamDirection(90, 0, axes), eps)
}

func TestBeamOrigin_OffsetAlongBodyUp(t *testing.T) {
	pose := geom.Pose{Location: r3.Vec{X: 100, Y: 50}, Rotation: geom.Rotator{Roll: 90}}
	up := pose.Axes().Up
	got := BeamOrigin(pose, 7.21)
	assertVec(t, r3.Add(pose.Location, r3.Scale(7.21, up)), got, eps)
	assert.InDelta(t, 7.21, r3.Norm(r3.Sub(got, pose.Location)), eps)
}

func TestNextAzimuth(t *testing.T) {
	tests := []struct {
		az, res, want float64
	}{
		{0, 0.4, 0.4},
		{350, 20, 10},
		{359.5, 0.5, 0},
		{0, 360, 0},
		{10, -20, 350},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NextAzimuth(tt.az, tt.res), 1e-9, "NextAzimuth(%v, %v)", tt.az, tt.res)
	}
}
