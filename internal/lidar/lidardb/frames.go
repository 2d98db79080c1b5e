package lidardb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/lidarsim/internal/geom"
	"github.com/banshee-data/lidarsim/internal/lidar"
)

// FrameStore is a lidar.FrameSink that writes each frame and its beams to
// the database in one transaction.
type FrameStore struct {
	db        *LidarDB
	sessionID string

	mu     sync.Mutex
	closed bool
}

// NewFrameStore returns a sink bound to an existing session.
func NewFrameStore(db *LidarDB, sessionID string) *FrameStore {
	return &FrameStore{db: db, sessionID: sessionID}
}

// SessionID returns the session the store writes to.
func (fs *FrameStore) SessionID() string { return fs.sessionID }

// WriteFrame stores the frame header, its pose matrix and one row per beam.
func (fs *FrameStore) WriteFrame(frame *lidar.FrameRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errors.New("frame store is closed")
	}

	pose := frame.Pose.Matrix()
	poseJSON, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("failed to marshal frame pose: %w", err)
	}

	tx, err := fs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin frame transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO lidar_frames (session_id, tick, timestamp, azimuth, origin_x, origin_y, origin_z, pose_json, beam_count, hit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fs.sessionID, int64(frame.Tick), frame.Timestamp, frame.Azimuth,
		frame.Origin.X, frame.Origin.Y, frame.Origin.Z, string(poseJSON),
		len(frame.Samples), frame.Hits())
	if err != nil {
		return fmt.Errorf("failed to insert frame %d: %w", frame.Tick, err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get frame ID: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lidar_points (frame_id, beam_index, elevation, hit, dropped, x, y, z, distance, intensity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for i := range frame.Samples {
		s := &frame.Samples[i]
		if _, err := stmt.Exec(frameID, i, s.Elevation, s.Hit, s.Dropped,
			s.Point.X, s.Point.Y, s.Point.Z, s.Distance, s.Intensity); err != nil {
			return fmt.Errorf("failed to insert point %d of frame %d: %w", i, frame.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame %d: %w", frame.Tick, err)
	}
	return nil
}

// Close ends the session. It does not close the database.
func (fs *FrameStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	return fs.db.EndSession(fs.sessionID)
}

// StoredFrame is a frame header read back from the database.
type StoredFrame struct {
	FrameID   int64
	Tick      uint64
	Timestamp float64
	Azimuth   float64
	Pose      [16]float64
	BeamCount int
	HitCount  int
}

// StoredPoint is one beam of a stored frame.
type StoredPoint struct {
	BeamIndex int
	Elevation float64
	Hit       bool
	Dropped   bool
	X, Y, Z   float64
	Distance  float64
	Intensity float64
}

// Frames lists a session's frames in tick order, optionally limited to a
// timestamp window. A zero-width window (from == to == 0) returns all.
func (ldb *LidarDB) Frames(sessionID string, from, to float64) ([]StoredFrame, error) {
	query := `SELECT frame_id, tick, timestamp, azimuth, pose_json, beam_count, hit_count
		FROM lidar_frames WHERE session_id = ?`
	args := []interface{}{sessionID}
	if from != 0 || to != 0 {
		query += ` AND timestamp >= ? AND timestamp <= ?`
		args = append(args, from, to)
	}
	query += ` ORDER BY tick`

	rows, err := ldb.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []StoredFrame
	for rows.Next() {
		var f StoredFrame
		var tick int64
		var poseJSON string
		if err := rows.Scan(&f.FrameID, &tick, &f.Timestamp, &f.Azimuth, &poseJSON, &f.BeamCount, &f.HitCount); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Tick = uint64(tick)
		if err := json.Unmarshal([]byte(poseJSON), &f.Pose); err != nil {
			return nil, fmt.Errorf("failed to parse pose of frame %d: %w", f.Tick, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Points returns the beams of one frame in beam order.
func (ldb *LidarDB) Points(frameID int64) ([]StoredPoint, error) {
	rows, err := ldb.Query(`
		SELECT beam_index, elevation, hit, dropped, x, y, z, distance, intensity
		FROM lidar_points WHERE frame_id = ? ORDER BY beam_index
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var out []StoredPoint
	for rows.Next() {
		var p StoredPoint
		if err := rows.Scan(&p.BeamIndex, &p.Elevation, &p.Hit, &p.Dropped, &p.X, &p.Y, &p.Z, &p.Distance, &p.Intensity); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// WorldPoints returns the hits of a frame in world coordinates. Points
// recorded in the sensor frame are mapped through the stored pose matrix.
func (ldb *LidarDB) WorldPoints(sessionID string, frame StoredFrame) ([]StoredPoint, error) {
	session, err := ldb.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	points, err := ldb.Points(frame.FrameID)
	if err != nil {
		return nil, err
	}
	local := session.CoordinateFrame == "sensor"
	if local && !geom.IsValidTransformMatrix(frame.Pose) {
		return nil, fmt.Errorf("frame %d has an invalid pose matrix", frame.Tick)
	}

	hits := points[:0]
	for _, p := range points {
		if !p.Hit {
			continue
		}
		if local {
			p.X, p.Y, p.Z = geom.ApplyMatrix(p.X, p.Y, p.Z, frame.Pose)
		}
		hits = append(hits, p)
	}
	return hits, nil
}

// SessionStats summarises the returns of a session.
type SessionStats struct {
	Frames       int64
	Beams        int64
	Hits         int64
	Dropped      int64
	MeanDistance sql.NullFloat64
	MaxIntensity sql.NullFloat64
}

// Stats aggregates over every stored beam of a session.
func (ldb *LidarDB) Stats(sessionID string) (*SessionStats, error) {
	var s SessionStats
	err := ldb.QueryRow(`
		SELECT
			COUNT(DISTINCT lf.frame_id),
			COUNT(lp.beam_index),
			COALESCE(SUM(lp.hit), 0),
			COALESCE(SUM(lp.dropped), 0),
			AVG(CASE WHEN lp.hit = 1 THEN lp.distance END),
			MAX(CASE WHEN lp.hit = 1 THEN lp.intensity END)
		FROM lidar_frames lf
		LEFT JOIN lidar_points lp ON lp.frame_id = lf.frame_id
		WHERE lf.session_id = ?
	`, sessionID).Scan(&s.Frames, &s.Beams, &s.Hits, &s.Dropped, &s.MeanDistance, &s.MaxIntensity)
	if err != nil {
		return nil, fmt.Errorf("failed to compute session stats: %w", err)
	}
	return &s, nil
}
