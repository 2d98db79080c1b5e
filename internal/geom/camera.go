package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pinhole is a perspective camera looking along Axes.Forward with the image
// x axis along Axes.Right and the image y axis along -Axes.Up (row 0 is the
// top of the image). FOVDeg is the field of view of the larger image axis;
// the smaller axis is narrowed so pixels stay square.
type Pinhole struct {
	Origin r3.Vec
	Axes   Axes
	FOVDeg float64
	Width  int
	Height int
}

func (c Pinhole) scales() (sx, sy float64) {
	inv := 1 / math.Tan(Deg2Rad(c.FOVDeg)/2)
	w, h := float64(c.Width), float64(c.Height)
	if w > h {
		return inv, inv * w / h
	}
	return inv * h / w, inv
}

// WorldToPixel projects p onto the image plane. The returned coordinates
// are continuous pixel positions and may fall outside the image. ok is
// false when p is at or behind the camera plane.
func (c Pinhole) WorldToPixel(p r3.Vec) (x, y float64, ok bool) {
	if c.Width <= 0 || c.Height <= 0 {
		return 0, 0, false
	}
	d := r3.Sub(p, c.Origin)
	depth := r3.Dot(d, c.Axes.Forward)
	if depth <= 0 {
		return 0, 0, false
	}
	sx, sy := c.scales()
	ndcX := r3.Dot(d, c.Axes.Right) / depth * sx
	ndcY := r3.Dot(d, c.Axes.Up) / depth * sy
	x = (ndcX + 1) / 2 * float64(c.Width)
	y = (1 - ndcY) / 2 * float64(c.Height)
	return x, y, true
}

// PixelRay returns the unit world direction through continuous pixel
// position (x, y). It is the inverse of WorldToPixel.
func (c Pinhole) PixelRay(x, y float64) r3.Vec {
	sx, sy := c.scales()
	ndcX := 2*x/float64(c.Width) - 1
	ndcY := 1 - 2*y/float64(c.Height)
	dir := r3.Add(c.Axes.Forward, r3.Add(
		r3.Scale(ndcX/sx, c.Axes.Right),
		r3.Scale(ndcY/sy, c.Axes.Up),
	))
	return r3.Unit(dir)
}
