package lidar

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

// fixedProjector always lands on the same continuous pixel position.
type fixedProjector struct {
	x, y float64
	ok   bool
}

func (p fixedProjector) WorldToPixel(r3.Vec) (float64, float64, bool) { return p.x, p.y, p.ok }

func gradientView(w, h int, proj Projector) *RenderedView {
	px := make([]color.RGBA, w*h)
	for i := range px {
		px[i] = color.RGBA{R: uint8(i), G: 7, B: 9, A: 255}
	}
	return &RenderedView{Width: w, Height: h, Pixels: px, Projector: proj}
}

func TestIntensityEstimate_ReadsRedAtFlatIndex(t *testing.T) {
	view := gradientView(4, 3, fixedProjector{x: 2.7, y: 1.2, ok: true})
	e := IntensityEstimator{AngleWeight: 0}

	got, inView := e.Estimate(view, r3.Vec{}, 0.3)
	assert.True(t, inView)
	assert.Equal(t, 6.0, got, "pixel (2,1) has flat index 4*1+2")
}

func TestIntensityEstimate_AngleWeight(t *testing.T) {
	view := gradientView(16, 16, fixedProjector{x: 4, y: 12, ok: true})
	raw := 196.0

	tests := []struct {
		name      string
		weight    float64
		incidence float64
		want      float64
	}{
		{"perpendicular unattenuated", 1, 1, raw},
		{"full weight scales by incidence", 1, 0.5, raw * 0.5},
		{"no weight ignores incidence", 0, 0.1, raw},
		{"half weight blends", 0.5, 0.5, raw * 0.75},
		{"back face goes negative", 1, -0.5, -raw * 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inView := IntensityEstimator{AngleWeight: tt.weight}.Estimate(view, r3.Vec{}, tt.incidence)
			assert.True(t, inView)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIntensityEstimate_OutOfView(t *testing.T) {
	e := IntensityEstimator{AngleWeight: 1}
	tests := []struct {
		name string
		view *RenderedView
	}{
		{"no view", nil},
		{"no projector", &RenderedView{Width: 4, Height: 4, Pixels: make([]color.RGBA, 16)}},
		{"behind camera", gradientView(4, 4, fixedProjector{ok: false})},
		{"above image", gradientView(4, 4, fixedProjector{x: 1, y: -0.5, ok: true})},
		{"below image", gradientView(4, 4, fixedProjector{x: 1, y: 4, ok: true})},
		{"left of first pixel", gradientView(4, 4, fixedProjector{x: -0.1, y: 0, ok: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inView := e.Estimate(tt.view, r3.Vec{}, 1)
			assert.False(t, inView)
			assert.Equal(t, 0.0, got)
		})
	}
}

func TestIntensityEstimate_FlatIndexWrapsPastRightEdge(t *testing.T) {
	view := gradientView(4, 4, fixedProjector{x: 4.5, y: 1, ok: true})
	got, inView := IntensityEstimator{}.Estimate(view, r3.Vec{}, 1)
	assert.True(t, inView)
	assert.Equal(t, 8.0, got, "x=4 on row 1 reads the first pixel of row 2")
}

func TestCaptureFOV(t *testing.T) {
	tests := []struct {
		min, max float64
		want     float64
		capped   bool
	}{
		{-30.67, 10.67, 90, false},
		{-35, 35, 90, false},
		{-40, 40, 100, false},
		{-70, 75, 165, false},
		{-75, 75, 170, true},
		{-90, 90, 170, true},
	}
	for _, tt := range tests {
		cfg := DefaultSensorConfig()
		cfg.MinElevation, cfg.MaxElevation = tt.min, tt.max
		fov, capped := CaptureFOV(cfg)
		assert.InDelta(t, tt.want, fov, 1e-9, "span %v..%v", tt.min, tt.max)
		assert.Equal(t, tt.capped, capped, "span %v..%v", tt.min, tt.max)
	}
}

func TestCaptureCamera_LooksAlongMidFan(t *testing.T) {
	cfg := DefaultSensorConfig()
	pose := geom.Pose{Location: r3.Vec{X: 10, Y: 20, Z: 30}, Rotation: geom.Rotator{Yaw: 30}}
	cam := CaptureCamera(cfg, pose, 45)

	mid := (cfg.MaxElevation + cfg.MinElevation) / 2
	assertVec(t, BeamDirection(45, mid, pose.Axes()), cam.Axes.Forward, 1e-9)
	assertVec(t, BeamOrigin(pose, cfg.BeamOriginOffset), cam.Origin, 1e-9)
	assert.Equal(t, 90.0, cam.FOVDeg)
	assert.Equal(t, cfg.RenderWidth, cam.Width)
	assert.Equal(t, cfg.RenderHeight, cam.Height)
}

func TestCaptureCamera_EveryBeamProjectsInsideDefaultFan(t *testing.T) {
	cfg := DefaultSensorConfig()
	pose := geom.Pose{}
	for _, az := range []float64{0, 90, 217.6} {
		cam := CaptureCamera(cfg, pose, az)
		origin := BeamOrigin(pose, cfg.BeamOriginOffset)
		for _, el := range Elevations(cfg) {
			p := r3.Add(origin, r3.Scale(1000, BeamDirection(az, el, pose.Axes())))
			x, y, ok := cam.WorldToPixel(p)
			if !ok || x < 0 || x >= float64(cam.Width) || y < 0 || y >= float64(cam.Height) {
				t.Errorf("azimuth %v elevation %v projected to (%v, %v, %v)", az, el, x, y, ok)
			}
		}
	}
}
