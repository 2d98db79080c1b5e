// Package motion moves the sensor body through the world.
package motion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/geom"
	"github.com/banshee-data/lidarsim/internal/lidar"
)

var (
	_ lidar.PoseSource = (*Trajectory)(nil)
	_ lidar.Advancer   = (*Trajectory)(nil)
)

// Waypoint is one pose the body passes through.
type Waypoint struct {
	Location r3.Vec
	Rotation geom.Rotator
}

// Static returns a pose source fixed at location and rotation.
func Static(location r3.Vec, rotation geom.Rotator) lidar.StaticPose {
	return lidar.StaticPose(geom.Pose{Location: location, Rotation: rotation})
}

// ErrNoWaypoints is returned when a trajectory has nothing to follow.
var ErrNoWaypoints = errors.New("trajectory needs at least one waypoint")

// Trajectory moves at constant speed along straight segments between
// waypoints. Rotation is interpolated per segment along the shortest arc.
// Without Loop the body stops at the last waypoint; with Loop it returns to
// the first and keeps going.
type Trajectory struct {
	mu        sync.Mutex
	waypoints []Waypoint
	speed     float64 // cm/s
	loop      bool

	segment  int     // index of the segment's start waypoint
	progress float64 // cm travelled along the current segment
	odometer float64 // cm travelled in total
	finished bool
}

// NewTrajectory builds a trajectory starting at the first waypoint.
func NewTrajectory(waypoints []Waypoint, speed float64, loop bool) (*Trajectory, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}
	if speed < 0 {
		return nil, fmt.Errorf("trajectory speed must be non-negative, got %v", speed)
	}
	wps := make([]Waypoint, len(waypoints))
	copy(wps, waypoints)
	t := &Trajectory{waypoints: wps, speed: speed, loop: loop}
	t.finished = len(wps) == 1 || t.totalLength() == 0
	return t, nil
}

// segmentCount is the number of segments walked per lap.
func (t *Trajectory) segmentCount() int {
	if t.loop {
		return len(t.waypoints)
	}
	return len(t.waypoints) - 1
}

func (t *Trajectory) endpoints(i int) (Waypoint, Waypoint) {
	return t.waypoints[i], t.waypoints[(i+1)%len(t.waypoints)]
}

func (t *Trajectory) segmentLength(i int) float64 {
	a, b := t.endpoints(i)
	return r3.Norm(r3.Sub(b.Location, a.Location))
}

func (t *Trajectory) totalLength() float64 {
	var total float64
	for i := 0; i < t.segmentCount(); i++ {
		total += t.segmentLength(i)
	}
	return total
}

// Advance moves the body speed*dt further along the path.
func (t *Trajectory) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}

	remaining := t.speed * dt.Seconds()
	if t.loop {
		// Whole laps change nothing but the odometer.
		if lap := t.totalLength(); remaining > lap {
			laps := float64(int64(remaining / lap))
			t.odometer += laps * lap
			remaining -= laps * lap
		}
	}
	for remaining > 0 {
		left := t.segmentLength(t.segment) - t.progress
		if remaining < left {
			t.progress += remaining
			t.odometer += remaining
			return
		}
		remaining -= left
		t.odometer += left
		t.progress = 0
		t.segment++
		if t.segment >= t.segmentCount() {
			if !t.loop {
				// Park on the final waypoint.
				t.segment = t.segmentCount() - 1
				t.progress = t.segmentLength(t.segment)
				t.finished = true
				return
			}
			t.segment = 0
		}
	}
}

// Pose returns the interpolated pose at the current position.
func (t *Trajectory) Pose() geom.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.waypoints) == 1 {
		return geom.Pose{Location: t.waypoints[0].Location, Rotation: t.waypoints[0].Rotation}
	}
	a, b := t.endpoints(t.segment)
	var frac float64
	if l := t.segmentLength(t.segment); l > 0 {
		frac = t.progress / l
	}
	return geom.Pose{
		Location: r3.Add(a.Location, r3.Scale(frac, r3.Sub(b.Location, a.Location))),
		Rotation: a.Rotation.Lerp(b.Rotation, frac),
	}
}

// Finished reports whether a non-looping trajectory has reached its end.
func (t *Trajectory) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Distance is the total path length travelled so far, in cm.
func (t *Trajectory) Distance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.odometer
}
