package lidar

import (
	"github.com/banshee-data/lidarsim/internal/geom"
)

// Capture field-of-view limits, in degrees.
const (
	BaseCaptureFOV    = 90.0
	WideFanThreshold  = 70.0
	WideFanMargin     = 20.0
	CaptureFOVCapSpan = 150.0
	MaxCaptureFOV     = 170.0
)

// CaptureFOV returns the field of view of the intensity camera for the
// configured beam fan. capped is true when the fan is too tall to fit and
// beams near the top and bottom may project outside the image.
func CaptureFOV(cfg SensorConfig) (fov float64, capped bool) {
	span := cfg.ElevationSpan()
	switch {
	case span >= CaptureFOVCapSpan:
		return MaxCaptureFOV, true
	case span > WideFanThreshold:
		return span + WideFanMargin, false
	default:
		return BaseCaptureFOV, false
	}
}

// CaptureCamera places the intensity camera at the beam origin, turned to
// the current azimuth and pitched to the middle of the beam fan.
func CaptureCamera(cfg SensorConfig, pose geom.Pose, azimuthDeg float64) geom.Pinhole {
	fov, _ := CaptureFOV(cfg)
	mid := (cfg.MaxElevation + cfg.MinElevation) / 2
	return geom.Pinhole{
		Origin: BeamOrigin(pose, cfg.BeamOriginOffset),
		Axes:   pose.Axes().Yaw(azimuthDeg).Pitch(mid),
		FOVDeg: fov,
		Width:  cfg.RenderWidth,
		Height: cfg.RenderHeight,
	}
}
