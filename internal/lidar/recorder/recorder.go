// Package recorder writes sensor frames to CSV logs and reads them back.
package recorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/banshee-data/lidarsim/internal/fsutil"
	"github.com/banshee-data/lidarsim/internal/lidar"
)

// Header is the first line of every recording.
const Header = "timestamp (seconds),x (cm),y (cm),z (cm),intensity (scale of 0 to 255)"

// DefaultFileName is used when a session does not name its output file.
const DefaultFileName = "LidarRecording.csv"

// MetadataExtension is appended to the recording path, minus its own
// extension, to name the sidecar written on Close.
const MetadataExtension = ".json"

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("recorder is closed")

// LogHeader describes a finished recording. It is written next to the CSV
// so a replayer can split rows back into frames.
type LogHeader struct {
	Version         string  `json:"version"`
	SessionID       string  `json:"session_id,omitempty"`
	SensorName      string  `json:"sensor_name,omitempty"`
	BeamCount       int     `json:"beam_count"`
	TotalFrames     uint64  `json:"total_frames"`
	DroppedFrames   uint64  `json:"dropped_frames"`
	StartTimestamp  float64 `json:"start_timestamp"`
	EndTimestamp    float64 `json:"end_timestamp"`
	CoordinateFrame string  `json:"coordinate_frame"`
}

// Config configures a CSVRecorder.
type Config struct {
	// Path of the CSV file. Parent directories are created on Start.
	Path string
	// FS defaults to the OS filesystem.
	FS fsutil.FileSystem
	// ReopenPerWrite opens the file in append mode for each frame and
	// closes it again, rather than holding it open for the session.
	ReopenPerWrite bool
	// WriteMetadata writes a LogHeader sidecar on Close.
	WriteMetadata bool
	SessionID     string
	SensorName    string
	BeamCount     int
	// LocalCoordinates records which frame the points are expressed in.
	LocalCoordinates bool
}

// OutputPath joins an output directory and file name, falling back to
// DefaultFileName and adding a .csv extension when none is given.
func OutputPath(dir, name string) string {
	if name == "" {
		name = DefaultFileName
	}
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	return filepath.Join(dir, name)
}

// CSVRecorder appends one batch of rows per frame to a CSV file. It owns
// the file exclusively; a frame's rows are always written with a single
// Write so frames never interleave.
type CSVRecorder struct {
	cfg Config
	fs  fsutil.FileSystem

	mu      sync.Mutex
	w       io.WriteCloser
	started bool
	closed  bool
	buf     bytes.Buffer
	header  LogHeader

	// committed is the file size after the last complete frame. A failed
	// write may leave part of a frame beyond it; torn marks that the tail
	// must be cut before anything else is appended.
	committed int64
	torn      bool
}

// NewCSVRecorder returns a recorder that has not touched the filesystem yet.
func NewCSVRecorder(cfg Config) *CSVRecorder {
	fs := cfg.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	frame := "world"
	if cfg.LocalCoordinates {
		frame = "sensor"
	}
	return &CSVRecorder{
		cfg: cfg,
		fs:  fs,
		header: LogHeader{
			Version:         "1.0",
			SessionID:       cfg.SessionID,
			SensorName:      cfg.SensorName,
			BeamCount:       cfg.BeamCount,
			CoordinateFrame: frame,
		},
	}
}

// Path returns the CSV path.
func (r *CSVRecorder) Path() string { return r.cfg.Path }

// Start truncates the file and writes the header. A failure is not fatal:
// WriteFrame retries until the header has been written once.
func (r *CSVRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.startLocked()
}

func (r *CSVRecorder) startLocked() error {
	if r.started {
		return nil
	}
	if dir := filepath.Dir(r.cfg.Path); dir != "." && dir != "" {
		if err := r.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	w, err := r.fs.Create(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to create recording %s: %w", r.cfg.Path, err)
	}
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		w.Close()
		return fmt.Errorf("failed to write recording header: %w", err)
	}
	r.started = true
	r.committed = int64(len(Header) + 1)
	r.torn = false
	if r.cfg.ReopenPerWrite {
		return w.Close()
	}
	r.w = w
	return nil
}

// WriteFrame appends one row per beam. A frame that cannot be written is
// lost and counted in the sidecar; the next frame tries again.
func (r *CSVRecorder) WriteFrame(frame *lidar.FrameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.startLocked(); err != nil {
		r.header.DroppedFrames++
		return err
	}

	r.buf.Reset()
	AppendRows(&r.buf, frame)

	if err := r.writeLocked(r.buf.Bytes()); err != nil {
		r.header.DroppedFrames++
		return err
	}

	if r.header.TotalFrames == 0 {
		r.header.StartTimestamp = frame.Timestamp
	}
	r.header.EndTimestamp = frame.Timestamp
	r.header.TotalFrames++
	if r.header.BeamCount == 0 {
		r.header.BeamCount = len(frame.Samples)
	}
	return nil
}

// writeLocked appends one frame's rows. On failure the file is rolled back
// to the last complete frame before the next write, so a frame is either
// recorded whole or not at all.
func (r *CSVRecorder) writeLocked(p []byte) error {
	if err := r.repairLocked(); err != nil {
		return err
	}

	if !r.cfg.ReopenPerWrite {
		if r.w == nil {
			w, err := r.fs.OpenAppend(r.cfg.Path)
			if err != nil {
				return fmt.Errorf("failed to reopen recording %s: %w", r.cfg.Path, err)
			}
			r.w = w
		}
		if _, err := r.w.Write(p); err != nil {
			r.w.Close()
			r.w = nil
			r.torn = true
			return fmt.Errorf("failed to write frame: %w", err)
		}
		r.committed += int64(len(p))
		return nil
	}

	w, err := r.fs.OpenAppend(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open recording %s: %w", r.cfg.Path, err)
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		r.torn = true
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := w.Close(); err != nil {
		r.torn = true
		return fmt.Errorf("failed to close recording: %w", err)
	}
	r.committed += int64(len(p))
	return nil
}

// repairLocked cuts a partially written frame off the end of the file.
func (r *CSVRecorder) repairLocked() error {
	if !r.torn {
		return nil
	}
	if r.w != nil {
		r.w.Close()
		r.w = nil
	}
	if err := r.fs.Truncate(r.cfg.Path, r.committed); err != nil {
		return fmt.Errorf("failed to roll back partial frame in %s: %w", r.cfg.Path, err)
	}
	r.torn = false
	return nil
}

// AppendRows formats a frame as CSV rows of timestamp, x, y, z and
// intensity, in sample order.
func AppendRows(buf *bytes.Buffer, frame *lidar.FrameRecord) {
	for i := range frame.Samples {
		s := &frame.Samples[i]
		fmt.Fprintf(buf, "%f,%f,%f,%f,%f\n", frame.Timestamp, s.Point.X, s.Point.Y, s.Point.Z, s.Intensity)
	}
}

// FrameCount returns the number of frames written.
func (r *CSVRecorder) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header.TotalFrames
}

// Header returns the metadata collected so far.
func (r *CSVRecorder) Header() LogHeader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header
}

// Close closes the file and writes the metadata sidecar when configured.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.w != nil {
		if err := r.w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
		}
		r.w = nil
	}
	if err := r.repairLocked(); err != nil {
		errs = append(errs, err)
	}
	if r.cfg.WriteMetadata && r.started {
		if err := r.writeMetadataLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *CSVRecorder) writeMetadataLocked() error {
	data, err := json.MarshalIndent(r.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recording header: %w", err)
	}
	w, err := r.fs.Create(MetadataPath(r.cfg.Path))
	if err != nil {
		return fmt.Errorf("failed to create recording header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write recording header: %w", err)
	}
	return w.Close()
}

// MetadataPath is the sidecar path for a recording.
func MetadataPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + MetadataExtension
}
