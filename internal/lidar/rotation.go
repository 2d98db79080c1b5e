package lidar

import "math"

// NextAzimuth advances the spinning head by one tick and wraps into [0, 360).
func NextAzimuth(azimuthDeg, resolutionDeg float64) float64 {
	az := math.Mod(azimuthDeg+resolutionDeg, 360)
	if az < 0 {
		az += 360
	}
	return az
}
