package scene

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// hitEpsilon keeps a ray from re-hitting the surface it starts on.
const hitEpsilon = 1e-6

// DefaultColour is a mid-grey surface.
var DefaultColour = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Shape is a solid the world can be built from.
type Shape interface {
	// Intersect returns the distance along the unit ray to the first
	// surface in front of origin and the surface normal there.
	Intersect(origin, dir r3.Vec) (t float64, normal r3.Vec, ok bool)
	// BaseColour is the unlit surface colour the renderer draws.
	BaseColour() color.RGBA
}

// Plane is an infinite one-sided surface. Rays hitting it from behind still
// hit, and report the plane's own normal, so incidence goes negative.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
	Colour color.RGBA
}

// NewPlane normalises the normal.
func NewPlane(point, normal r3.Vec, c color.RGBA) Plane {
	return Plane{Point: point, Normal: r3.Unit(normal), Colour: c}
}

func (p Plane) Intersect(origin, dir r3.Vec) (float64, r3.Vec, bool) {
	denom := r3.Dot(dir, p.Normal)
	if math.Abs(denom) < 1e-12 {
		return 0, r3.Vec{}, false
	}
	t := r3.Dot(r3.Sub(p.Point, origin), p.Normal) / denom
	if t <= hitEpsilon {
		return 0, r3.Vec{}, false
	}
	return t, p.Normal, true
}

func (p Plane) BaseColour() color.RGBA { return p.Colour }

// Sphere is a ball with outward normals.
type Sphere struct {
	Center r3.Vec
	Radius float64
	Colour color.RGBA
}

func (s Sphere) Intersect(origin, dir r3.Vec) (float64, r3.Vec, bool) {
	oc := r3.Sub(origin, s.Center)
	b := r3.Dot(oc, dir)
	c := r3.Dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, r3.Vec{}, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t <= hitEpsilon {
		t = -b + sq
	}
	if t <= hitEpsilon {
		return 0, r3.Vec{}, false
	}
	p := r3.Add(origin, r3.Scale(t, dir))
	return t, r3.Unit(r3.Sub(p, s.Center)), true
}

func (s Sphere) BaseColour() color.RGBA { return s.Colour }

// Box is an axis-aligned cuboid with outward face normals.
type Box struct {
	Min, Max r3.Vec
	Colour   color.RGBA
}

// NewBox builds a box from its centre and full extent along each axis.
func NewBox(center, size r3.Vec, c color.RGBA) Box {
	half := r3.Scale(0.5, size)
	return Box{Min: r3.Sub(center, half), Max: r3.Add(center, half), Colour: c}
}

func (b Box) Intersect(origin, dir r3.Vec) (float64, r3.Vec, bool) {
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	tNear, tFar := math.Inf(-1), math.Inf(1)
	nearAxis, farAxis := -1, -1
	var nearSign, farSign float64
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, r3.Vec{}, false
			}
			continue
		}
		t1 := (lo[i] - o[i]) / d[i]
		t2 := (hi[i] - o[i]) / d[i]
		// Entering through the min face means the face looks toward -axis.
		s1, s2 := -1.0, 1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s1, s2 = s2, s1
		}
		if t1 > tNear {
			tNear, nearAxis, nearSign = t1, i, s1
		}
		if t2 < tFar {
			tFar, farAxis, farSign = t2, i, s2
		}
		if tNear > tFar {
			return 0, r3.Vec{}, false
		}
	}

	t, axis, sign := tNear, nearAxis, nearSign
	if t <= hitEpsilon {
		t, axis, sign = tFar, farAxis, farSign
	}
	if t <= hitEpsilon || axis < 0 {
		return 0, r3.Vec{}, false
	}
	var n [3]float64
	n[axis] = sign
	return t, r3.Vec{X: n[0], Y: n[1], Z: n[2]}, true
}

func (b Box) BaseColour() color.RGBA { return b.Colour }
