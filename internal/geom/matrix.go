package geom

import "math"

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

// Matrix returns the pose as a 4x4 row-major homogeneous transform.
// The columns of the rotation block are the forward, right and up axes.
func (p Pose) Matrix() [16]float64 {
	a := p.Axes()
	return [16]float64{
		a.Forward.X, a.Right.X, a.Up.X, p.Location.X,
		a.Forward.Y, a.Right.Y, a.Up.Y, p.Location.Y,
		a.Forward.Z, a.Right.Z, a.Up.Z, p.Location.Z,
		0, 0, 0, 1,
	}
}

// ApplyMatrix applies a 4x4 row-major transform T to point (x,y,z).
func ApplyMatrix(x, y, z float64, T [16]float64) (wx, wy, wz float64) {
	wx = T[0]*x + T[1]*y + T[2]*z + T[3]
	wy = T[4]*x + T[5]*y + T[6]*z + T[7]
	wz = T[8]*x + T[9]*y + T[10]*z + T[11]
	return
}

// IsValidTransformMatrix checks if a 4x4 matrix is a valid rigid transform.
// A valid rigid transform has:
// 1. a rotation submatrix with det ≈ 1 (proper rotation, not reflection)
// 2. a last row of [0 0 0 1]
func IsValidTransformMatrix(T [16]float64) bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}

	return true
}
