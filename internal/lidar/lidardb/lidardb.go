// Package lidardb stores simulated sensor sessions and their frames in SQLite.
package lidardb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type LidarDB struct {
	*sql.DB
}

// NewLidarDB opens the database at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway store.
func NewLidarDB(path string) (*LidarDB, error) {
	db, err := sql.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open lidar database: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	ldb := &LidarDB{db}
	if err := ldb.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("initialized lidar database schema")
	return ldb, nil
}

// withPragmas applies the pragmas every connection needs through the DSN,
// so a reopened pooled connection gets them too.
func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Session is one recorded sensor run.
type Session struct {
	SessionID       string
	SensorName      string
	CoordinateFrame string
	ConfigJSON      string
	StartTimestamp  float64
	EndTimestamp    sql.NullFloat64
	FrameCount      int64
	PointCount      int64
}

// StartSession creates a session row and returns its new ID. config is
// stored as JSON for later inspection.
func (ldb *LidarDB) StartSession(sensorName string, localFrame bool, config interface{}) (string, error) {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session config: %w", err)
	}
	frame := "world"
	if localFrame {
		frame = "sensor"
	}

	id := uuid.NewString()
	_, err = ldb.Exec(`
		INSERT INTO lidar_sessions (session_id, sensor_name, coordinate_frame, config_json)
		VALUES (?, ?, ?, ?)
	`, id, sensorName, frame, string(cfgJSON))
	if err != nil {
		return "", fmt.Errorf("failed to start lidar session: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time and refreshes the frame and point counts.
func (ldb *LidarDB) EndSession(sessionID string) error {
	res, err := ldb.Exec(`
		UPDATE lidar_sessions
		SET
			end_timestamp = UNIXEPOCH('subsec'),
			frame_count = (SELECT COUNT(*) FROM lidar_frames WHERE session_id = ?),
			point_count = (
				SELECT COUNT(*) FROM lidar_points lp
				JOIN lidar_frames lf ON lp.frame_id = lf.frame_id
				WHERE lf.session_id = ? AND lp.hit = 1
			)
		WHERE session_id = ?
	`, sessionID, sessionID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end lidar session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to end lidar session: %w", ErrSessionNotFound)
	}
	return nil
}

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `session_id, sensor_name, coordinate_frame, config_json,
	start_timestamp, end_timestamp, frame_count, point_count`

func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var s Session
	err := row.Scan(&s.SessionID, &s.SensorName, &s.CoordinateFrame, &s.ConfigJSON,
		&s.StartTimestamp, &s.EndTimestamp, &s.FrameCount, &s.PointCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession loads one session.
func (ldb *LidarDB) GetSession(sessionID string) (*Session, error) {
	row := ldb.QueryRow(`SELECT `+sessionColumns+` FROM lidar_sessions WHERE session_id = ?`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return s, nil
}

// ListSessions returns every session, newest first.
func (ldb *LidarDB) ListSessions() ([]Session, error) {
	rows, err := ldb.Query(`SELECT ` + sessionColumns + ` FROM lidar_sessions ORDER BY start_timestamp DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, through cascading keys, its frames.
func (ldb *LidarDB) DeleteSession(sessionID string) error {
	res, err := ldb.Exec(`DELETE FROM lidar_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
