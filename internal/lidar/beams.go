package lidar

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

// Elevations returns the beam elevations in increasing order, from
// MinElevation to MaxElevation. The last beam is assigned MaxElevation
// directly rather than accumulated, so it carries no rounding error.
// A single beam sits at MaxElevation.
func Elevations(cfg SensorConfig) []float64 {
	n := cfg.BeamCount
	if n < 1 {
		return nil
	}
	out := make([]float64, n)
	if n > 1 {
		spacing := (cfg.MaxElevation - cfg.MinElevation) / float64(n-1)
		for i := 0; i < n-1; i++ {
			out[i] = cfg.MinElevation + spacing*float64(i)
		}
	}
	out[n-1] = cfg.MaxElevation
	return out
}

// BeamDirection returns the unit direction of a beam. The body forward axis
// is first pitched by elevationDeg about the negated right axis (positive
// is up in the left-handed X-forward/Y-right/Z-up frame), then the result
// is turned by azimuthDeg about the body up axis.
func BeamDirection(azimuthDeg, elevationDeg float64, axes geom.Axes) r3.Vec {
	dir := geom.RotateAngleAxis(axes.Forward, elevationDeg, r3.Scale(-1, axes.Right))
	dir = geom.RotateAngleAxis(dir, azimuthDeg, axes.Up)
	return r3.Unit(dir)
}

// BeamOrigin is where every beam of a tick starts: the body location
// shifted along its up axis.
func BeamOrigin(pose geom.Pose, offset float64) r3.Vec {
	return r3.Add(pose.Location, r3.Scale(offset, pose.Axes().Up))
}
