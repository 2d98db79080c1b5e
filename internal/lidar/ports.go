package lidar

import (
	"image/color"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
)

// HitResult is the answer to one ray query.
type HitResult struct {
	Hit      bool
	Point    r3.Vec
	Normal   r3.Vec
	Distance float64
}

// RangeQuery casts a ray into the world. Implementations must be
// deterministic for a static world; the sensor calls Cast exactly once per
// beam per tick and never concurrently.
type RangeQuery interface {
	Cast(origin, dir r3.Vec, maxDistance float64) HitResult
}

// RangeQueryFunc adapts a function to RangeQuery.
type RangeQueryFunc func(origin, dir r3.Vec, maxDistance float64) HitResult

// Cast calls f.
func (f RangeQueryFunc) Cast(origin, dir r3.Vec, maxDistance float64) HitResult {
	return f(origin, dir, maxDistance)
}

// Projector maps a world point onto the pixel grid of a rendered view.
// ok is false when the point cannot be projected at all (behind the camera).
type Projector interface {
	WorldToPixel(p r3.Vec) (x, y float64, ok bool)
}

// RenderedView is a colour buffer together with the projection that
// produced it. Pixels is row-major, Width*Height long.
type RenderedView struct {
	Width     int
	Height    int
	Pixels    []color.RGBA
	Projector Projector
}

// Renderer produces a base-colour image of the world from a camera.
type Renderer interface {
	Render(cam geom.Pinhole) (*RenderedView, error)
}

// PoseSource reports the sensor body's current world pose.
type PoseSource interface {
	Pose() geom.Pose
}

// Advancer is implemented by pose sources that move over time. The sensor
// forwards each Step's delta to it before sampling the pose.
type Advancer interface {
	Advance(dt time.Duration)
}

// StaticPose is a PoseSource that never moves.
type StaticPose geom.Pose

// Pose returns the fixed pose.
func (p StaticPose) Pose() geom.Pose { return geom.Pose(p) }

// FrameSink persists assembled frames. WriteFrame must write a frame's rows
// as one batch so frames never interleave.
type FrameSink interface {
	WriteFrame(frame *FrameRecord) error
	Close() error
}
