package lidar

import (
	"errors"
	"image/color"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

// wallAt is a world containing one infinite plane x = d facing -X.
func wallAt(d float64) RangeQuery {
	return RangeQueryFunc(func(origin, dir r3.Vec, maxDistance float64) HitResult {
		if dir.X <= 0 {
			return HitResult{}
		}
		t := (d - origin.X) / dir.X
		if t < 0 || t > maxDistance {
			return HitResult{}
		}
		return HitResult{
			Hit:      true,
			Point:    r3.Add(origin, r3.Scale(t, dir)),
			Normal:   r3.Vec{X: -1},
			Distance: t,
		}
	})
}

var emptyWorld = RangeQueryFunc(func(r3.Vec, r3.Vec, float64) HitResult { return HitResult{} })

// flatRenderer renders every pixel in one colour.
type flatRenderer struct {
	colour color.RGBA
	err    error
	calls  int
	last   geom.Pinhole
}

func (r *flatRenderer) Render(cam geom.Pinhole) (*RenderedView, error) {
	r.calls++
	r.last = cam
	if r.err != nil {
		return nil, r.err
	}
	px := make([]color.RGBA, cam.Width*cam.Height)
	for i := range px {
		px[i] = r.colour
	}
	return &RenderedView{Width: cam.Width, Height: cam.Height, Pixels: px, Projector: cam}, nil
}

// captureSink keeps every frame it is given.
type captureSink struct {
	frames []*FrameRecord
	err    error
	closes int
}

func (s *captureSink) WriteFrame(f *FrameRecord) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *captureSink) Close() error {
	s.closes++
	return nil
}

var errSinkDown = errors.New("sink down")

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// quietConfig is a small deterministic sensor: no noise, no dropout.
func quietConfig() SensorConfig {
	cfg := DefaultSensorConfig()
	cfg.RangeAccuracy = 0
	cfg.FalloffStdDev = 0
	cfg.RenderWidth = 64
	cfg.RenderHeight = 64
	return cfg
}
