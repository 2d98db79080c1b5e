// Package geom holds the rigid-body geometry shared by the sensor, the
// synthetic world and the recorders.
//
// Coordinate convention: left-handed, X forward, Y right, Z up, with
// lengths in centimetres. This is the frame of the host world the sensor
// was first built against. Rotations are applied with the ordinary
// right-hand-rule quaternion maths of gonum's r3 package, so a rotation by
// a positive angle about the negated right axis pitches forward upward, and
// a positive angle about the up axis turns forward toward right (clockwise
// when viewed from above). Getting either sign wrong silently mirrors a scan.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Unit basis vectors of the world frame.
var (
	Forward = r3.Vec{X: 1}
	Right   = r3.Vec{Y: 1}
	Up      = r3.Vec{Z: 1}
)

// RotateAngleAxis rotates v by angleDeg degrees about axis.
// The axis does not need to be normalised.
func RotateAngleAxis(v r3.Vec, angleDeg float64, axis r3.Vec) r3.Vec {
	if angleDeg == 0 || r3.Norm(axis) == 0 {
		return v
	}
	return r3.NewRotation(Deg2Rad(angleDeg), axis).Rotate(v)
}

// Axes is an orthonormal body frame expressed in world coordinates.
type Axes struct {
	Forward r3.Vec
	Right   r3.Vec
	Up      r3.Vec
}

// WorldAxes returns the identity body frame.
func WorldAxes() Axes {
	return Axes{Forward: Forward, Right: Right, Up: Up}
}

// Pitch rotates the frame by deg about its negated right axis.
func (a Axes) Pitch(deg float64) Axes {
	axis := r3.Scale(-1, a.Right)
	return Axes{
		Forward: RotateAngleAxis(a.Forward, deg, axis),
		Right:   a.Right,
		Up:      RotateAngleAxis(a.Up, deg, axis),
	}
}

// Yaw rotates the frame by deg about its up axis.
func (a Axes) Yaw(deg float64) Axes {
	return Axes{
		Forward: RotateAngleAxis(a.Forward, deg, a.Up),
		Right:   RotateAngleAxis(a.Right, deg, a.Up),
		Up:      a.Up,
	}
}

// ToWorld expresses a body-frame vector in world coordinates.
func (a Axes) ToWorld(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(v.X, a.Forward), r3.Scale(v.Y, a.Right)), r3.Scale(v.Z, a.Up))
}

// ToLocal expresses a world vector in the body frame.
func (a Axes) ToLocal(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(v, a.Forward), Y: r3.Dot(v, a.Right), Z: r3.Dot(v, a.Up)}
}

// Rotator is an orientation in degrees using the host world's
// pitch/yaw/roll convention: yaw about Z, then pitch about the yawed
// negated right axis, then roll about forward.
type Rotator struct {
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
	Roll  float64 `json:"roll" yaml:"roll"`
}

// Axes returns the body frame described by the rotator.
func (r Rotator) Axes() Axes {
	sp, cp := math.Sincos(Deg2Rad(r.Pitch))
	sy, cy := math.Sincos(Deg2Rad(r.Yaw))
	sr, cr := math.Sincos(Deg2Rad(r.Roll))
	return Axes{
		Forward: r3.Vec{X: cp * cy, Y: cp * sy, Z: sp},
		Right:   r3.Vec{X: sr*sp*cy - cr*sy, Y: sr*sp*sy + cr*cy, Z: -sr * cp},
		Up:      r3.Vec{X: -(cr*sp*cy + sr*sy), Y: cy*sr - cr*sp*sy, Z: cr * cp},
	}
}

// Lerp interpolates each angle along the shortest arc.
func (r Rotator) Lerp(to Rotator, t float64) Rotator {
	return Rotator{
		Pitch: lerpAngle(r.Pitch, to.Pitch, t),
		Yaw:   lerpAngle(r.Yaw, to.Yaw, t),
		Roll:  lerpAngle(r.Roll, to.Roll, t),
	}
}

func lerpAngle(a, b, t float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return a + d*t
}

// Pose is a rigid transform without scale.
type Pose struct {
	Location r3.Vec
	Rotation Rotator
}

// Axes returns the body frame of the pose.
func (p Pose) Axes() Axes { return p.Rotation.Axes() }

// TransformPosition maps a body-frame point into world coordinates.
func (p Pose) TransformPosition(local r3.Vec) r3.Vec {
	return r3.Add(p.Location, p.Axes().ToWorld(local))
}

// InverseTransformPositionNoScale maps a world point into the body frame
// by undoing the translation and then the rotation.
func (p Pose) InverseTransformPositionNoScale(world r3.Vec) r3.Vec {
	return p.Axes().ToLocal(r3.Sub(world, p.Location))
}
