package lidar

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

// BeamSample is the result of one beam for one tick.
type BeamSample struct {
	Elevation    float64
	Direction    r3.Vec
	Hit          bool
	Dropped      bool
	ImpactPoint  r3.Vec
	ImpactNormal r3.Vec
	RawDistance  float64
	Distance     float64
	Incidence    float64
	Intensity    float64
	// InView is false for hits whose impact point had no pixel in the
	// rendered view.
	InView bool
	// Point is the output position: world or sensor-local for hits, the
	// origin for misses.
	Point r3.Vec
}

// FrameRecord holds every beam of one tick in increasing elevation order.
type FrameRecord struct {
	Tick      uint64
	Timestamp float64
	Azimuth   float64
	Pose      geom.Pose
	Origin    r3.Vec
	Samples   []BeamSample
}

// Hits counts the samples that returned.
func (f *FrameRecord) Hits() int {
	n := 0
	for i := range f.Samples {
		if f.Samples[i].Hit {
			n++
		}
	}
	return n
}

// AssemblePoint sets s.Point from the impact point. Misses, including
// dropped returns, always report (0,0,0) so every beam produces a row.
// With local output the point is expressed in the sensor body frame.
func AssemblePoint(s *BeamSample, pose geom.Pose, local bool) {
	switch {
	case !s.Hit:
		s.Point = r3.Vec{}
	case local:
		s.Point = pose.InverseTransformPositionNoScale(s.ImpactPoint)
	default:
		s.Point = s.ImpactPoint
	}
}
