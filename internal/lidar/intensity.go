package lidar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IntensityEstimator derives a 0-255 return strength from the base colour
// rendered at the impact point. The red channel stands in for reflectance.
type IntensityEstimator struct {
	AngleWeight float64
}

// Estimate returns the intensity of a hit at point with the given
// incidence. inView is false when the point has no pixel in view, in which
// case the intensity is 0.
//
// The pixel is addressed by its flat index width*y+x and only that index is
// bounds-checked, so a point just past the right edge reads the first pixel
// of the next row. Incidence is used unclamped, so a back-face hit with
// AngleWeight > 0 can produce a negative intensity.
func (e IntensityEstimator) Estimate(view *RenderedView, point r3.Vec, incidence float64) (intensity float64, inView bool) {
	raw, ok := sampleRed(view, point)
	if !ok {
		return 0, false
	}
	return raw * (e.AngleWeight*incidence + (1 - e.AngleWeight)), true
}

func sampleRed(view *RenderedView, point r3.Vec) (float64, bool) {
	if view == nil || view.Projector == nil || view.Width <= 0 {
		return 0, false
	}
	fx, fy, ok := view.Projector.WorldToPixel(point)
	if !ok || !isFinite(fx) || !isFinite(fy) {
		return 0, false
	}
	flat := float64(view.Width)*math.Floor(fy) + math.Floor(fx)
	if flat < 0 || flat >= float64(len(view.Pixels)) {
		return 0, false
	}
	return float64(view.Pixels[int(flat)].R), true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
