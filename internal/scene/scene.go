// Package scene is a small analytic world for running the sensor without a
// game engine. It answers ray queries and renders unlit base-colour views.
package scene

import (
	"fmt"
	"image/color"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
	"github.com/banshee-data/lidarsim/internal/lidar"
)

// Scene is a static set of shapes. It must not be modified while a sensor
// is casting into it.
type Scene struct {
	Shapes     []Shape
	Background color.RGBA
}

// New returns a scene holding shapes.
func New(shapes ...Shape) *Scene {
	return &Scene{Shapes: shapes}
}

// Add appends a shape.
func (s *Scene) Add(shape Shape) {
	s.Shapes = append(s.Shapes, shape)
}

// nearest finds the closest shape along a unit ray within maxDistance.
func (s *Scene) nearest(origin, dir r3.Vec, maxDistance float64) (t float64, normal r3.Vec, shape Shape) {
	t = maxDistance
	for _, sh := range s.Shapes {
		st, n, ok := sh.Intersect(origin, dir)
		if ok && st <= t {
			t, normal, shape = st, n, sh
		}
	}
	return t, normal, shape
}

// Cast implements lidar.RangeQuery.
func (s *Scene) Cast(origin, dir r3.Vec, maxDistance float64) lidar.HitResult {
	dir = r3.Unit(dir)
	t, n, shape := s.nearest(origin, dir, maxDistance)
	if shape == nil {
		return lidar.HitResult{}
	}
	return lidar.HitResult{
		Hit:      true,
		Point:    r3.Add(origin, r3.Scale(t, dir)),
		Normal:   n,
		Distance: t,
	}
}

// RenderDistance bounds primary rays when rendering.
const RenderDistance = 1e7

// Render implements lidar.Renderer by casting one ray through the centre
// of every pixel. Rows are shared between workers.
func (s *Scene) Render(cam geom.Pinhole) (*lidar.RenderedView, error) {
	w, h := cam.Width, cam.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("cannot render a %dx%d view", w, h)
	}
	px := make([]color.RGBA, w*h)

	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	rows := make(chan int, h)
	for y := 0; y < h; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < w; x++ {
					dir := cam.PixelRay(float64(x)+0.5, float64(y)+0.5)
					_, _, shape := s.nearest(cam.Origin, dir, RenderDistance)
					if shape == nil {
						px[y*w+x] = s.Background
					} else {
						px[y*w+x] = shape.BaseColour()
					}
				}
			}
		}()
	}
	wg.Wait()

	return &lidar.RenderedView{Width: w, Height: h, Pixels: px, Projector: cam}, nil
}
