package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func vecNear(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestRotateAngleAxis_PitchUpAboutNegatedRight(t *testing.T) {
	got := RotateAngleAxis(Forward, 90, r3.Scale(-1, Right))
	if !vecNear(got, Up, eps) {
		t.Errorf("pitching forward by +90 about -right = %v, want %v", got, Up)
	}
}

func TestRotateAngleAxis_YawTurnsTowardRight(t *testing.T) {
	got := RotateAngleAxis(Forward, 90, Up)
	if !vecNear(got, Right, eps) {
		t.Errorf("yawing forward by +90 = %v, want %v", got, Right)
	}
}

func TestRotateAngleAxis_ZeroAxisIsNoop(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	if got := RotateAngleAxis(v, 45, r3.Vec{}); got != v {
		t.Errorf("expected unchanged vector, got %v", got)
	}
}

func TestRotatorAxes_MatchesPitchThenYaw(t *testing.T) {
	tests := []Rotator{
		{},
		{Pitch: 30},
		{Yaw: 120},
		{Pitch: -15, Yaw: 200},
		{Pitch: 45, Yaw: -60},
	}
	for _, r := range tests {
		want := WorldAxes().Yaw(r.Yaw).Pitch(r.Pitch)
		got := r.Axes()
		if !vecNear(got.Forward, want.Forward, 1e-9) ||
			!vecNear(got.Right, want.Right, 1e-9) ||
			!vecNear(got.Up, want.Up, 1e-9) {
			t.Errorf("rotator %+v: axes %+v, want %+v", r, got, want)
		}
	}
}

func TestRotatorAxes_Orthonormal(t *testing.T) {
	a := Rotator{Pitch: 12, Yaw: 77, Roll: -33}.Axes()
	for name, v := range map[string]r3.Vec{"forward": a.Forward, "right": a.Right, "up": a.Up} {
		if math.Abs(r3.Norm(v)-1) > eps {
			t.Errorf("%s not unit: %v", name, r3.Norm(v))
		}
	}
	if math.Abs(r3.Dot(a.Forward, a.Right)) > eps || math.Abs(r3.Dot(a.Forward, a.Up)) > eps || math.Abs(r3.Dot(a.Right, a.Up)) > eps {
		t.Error("axes are not mutually orthogonal")
	}
}

func TestPose_InverseUndoesTransform(t *testing.T) {
	pose := Pose{
		Location: r3.Vec{X: 120, Y: -40, Z: 15},
		Rotation: Rotator{Pitch: 5, Yaw: 135, Roll: 2},
	}
	local := r3.Vec{X: 250, Y: 10, Z: -30}
	world := pose.TransformPosition(local)
	back := pose.InverseTransformPositionNoScale(world)
	if !vecNear(back, local, 1e-9) {
		t.Errorf("round trip = %v, want %v", back, local)
	}
}

func TestPose_MatrixAgreesWithTransform(t *testing.T) {
	pose := Pose{Location: r3.Vec{X: 1, Y: 2, Z: 3}, Rotation: Rotator{Yaw: 90}}
	m := pose.Matrix()
	if !IsValidTransformMatrix(m) {
		t.Fatal("pose matrix should be a valid rigid transform")
	}
	x, y, z := ApplyMatrix(10, 0, 0, m)
	want := pose.TransformPosition(r3.Vec{X: 10})
	if !vecNear(r3.Vec{X: x, Y: y, Z: z}, want, 1e-9) {
		t.Errorf("ApplyMatrix = (%v,%v,%v), want %v", x, y, z, want)
	}
}

func TestIsValidTransformMatrix_RejectsScaleAndBadRow(t *testing.T) {
	scaled := [16]float64{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 1,
	}
	if IsValidTransformMatrix(scaled) {
		t.Error("scaled matrix should be rejected")
	}
	badRow := [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		1, 0, 0, 1,
	}
	if IsValidTransformMatrix(badRow) {
		t.Error("matrix with non-zero projective row should be rejected")
	}
}

func TestRotatorLerp_ShortestArc(t *testing.T) {
	got := Rotator{Yaw: 350}.Lerp(Rotator{Yaw: 10}, 0.5)
	if math.Abs(got.Yaw-360) > eps {
		t.Errorf("expected yaw 360 (crossing north), got %v", got.Yaw)
	}
}

func TestPinhole_ProjectAndUnproject(t *testing.T) {
	cam := Pinhole{Axes: WorldAxes(), FOVDeg: 90, Width: 64, Height: 32}

	x, y, ok := cam.WorldToPixel(r3.Vec{X: 100})
	if !ok {
		t.Fatal("point ahead of the camera should project")
	}
	if math.Abs(x-32) > eps || math.Abs(y-16) > eps {
		t.Errorf("centre projected to (%v,%v), want (32,16)", x, y)
	}

	// 45 degrees to the right is the horizontal edge for a 90 degree FOV.
	x, _, _ = cam.WorldToPixel(r3.Vec{X: 100, Y: 100})
	if math.Abs(x-64) > 1e-9 {
		t.Errorf("right edge projected to x=%v, want 64", x)
	}

	// Points above the centre land in the upper half of the image.
	_, y, _ = cam.WorldToPixel(r3.Vec{X: 100, Z: 10})
	if y >= 16 {
		t.Errorf("point above centre projected to y=%v, want < 16", y)
	}

	dir := cam.PixelRay(10.5, 7.25)
	px, py, ok := cam.WorldToPixel(r3.Add(cam.Origin, r3.Scale(500, dir)))
	if !ok || math.Abs(px-10.5) > 1e-9 || math.Abs(py-7.25) > 1e-9 {
		t.Errorf("unproject/project = (%v,%v,%v), want (10.5,7.25,true)", px, py, ok)
	}
}

func TestPinhole_BehindCamera(t *testing.T) {
	cam := Pinhole{Axes: WorldAxes(), FOVDeg: 90, Width: 8, Height: 8}
	if _, _, ok := cam.WorldToPixel(r3.Vec{X: -5}); ok {
		t.Error("point behind the camera must not project")
	}
}
