package recorder

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/banshee-data/lidarsim/internal/fsutil"
)

// Row is one parsed line of a recording.
type Row struct {
	Timestamp float64
	X, Y, Z   float64
	Intensity float64
}

// Hit reports whether the row carries a return. Misses are recorded at the
// origin.
func (r Row) Hit() bool {
	return r.X != 0 || r.Y != 0 || r.Z != 0
}

// Frame is one tick of a recording.
type Frame struct {
	Index     int
	Timestamp float64
	Rows      []Row
}

// ParseCSV reads a recording. The header line is required.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.ReuseRecord = true

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("recording is empty")
		}
		return nil, fmt.Errorf("failed to read recording header: %w", err)
	}
	var header bytes.Buffer
	for i, f := range first {
		if i > 0 {
			header.WriteByte(',')
		}
		header.WriteString(f)
	}
	if header.String() != Header {
		return nil, fmt.Errorf("unexpected recording header %q", header.String())
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recording: %w", err)
		}
		var vals [5]float64
		for i, f := range rec {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		rows = append(rows, Row{Timestamp: vals[0], X: vals[1], Y: vals[2], Z: vals[3], Intensity: vals[4]})
	}
	return rows, nil
}

// GroupFrames splits rows into frames. With beamCount > 0 every frame is
// exactly beamCount rows; otherwise consecutive rows sharing a timestamp
// form a frame.
func GroupFrames(rows []Row, beamCount int) ([]Frame, error) {
	var frames []Frame
	if beamCount > 0 {
		if len(rows)%beamCount != 0 {
			return nil, fmt.Errorf("%d rows is not a whole number of %d-beam frames", len(rows), beamCount)
		}
		for i := 0; i < len(rows); i += beamCount {
			frames = append(frames, Frame{Index: len(frames), Timestamp: rows[i].Timestamp, Rows: rows[i : i+beamCount]})
		}
		return frames, nil
	}
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Timestamp != rows[start].Timestamp {
			frames = append(frames, Frame{Index: len(frames), Timestamp: rows[start].Timestamp, Rows: rows[start:i]})
			start = i
		}
	}
	return frames, nil
}

// Replayer steps through a finished recording frame by frame.
type Replayer struct {
	header LogHeader
	frames []Frame

	mu      sync.Mutex
	current int
}

// NewReplayer loads a recording and its sidecar, if present. Without a
// sidecar, rows are grouped by timestamp.
func NewReplayer(fs fsutil.FileSystem, path string) (*Replayer, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	var header LogHeader
	if meta := MetadataPath(path); meta != path && fs.Exists(meta) {
		raw, err := fs.ReadFile(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to read recording header: %w", err)
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			return nil, fmt.Errorf("failed to parse recording header: %w", err)
		}
	}

	rows, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	frames, err := GroupFrames(rows, header.BeamCount)
	if err != nil {
		return nil, err
	}
	if header.TotalFrames == 0 {
		header.TotalFrames = uint64(len(frames))
	}
	if len(frames) > 0 {
		header.StartTimestamp = frames[0].Timestamp
		header.EndTimestamp = frames[len(frames)-1].Timestamp
	}
	return &Replayer{header: header, frames: frames}, nil
}

// Header returns the recording metadata.
func (r *Replayer) Header() LogHeader { return r.header }

// TotalFrames returns the number of frames in the recording.
func (r *Replayer) TotalFrames() int { return len(r.frames) }

// Frames returns every frame.
func (r *Replayer) Frames() []Frame { return r.frames }

// CurrentFrame returns the index of the next frame ReadFrame returns.
func (r *Replayer) CurrentFrame() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SeekToTimestamp moves to the first frame at or after ts, or to the last
// frame when ts is beyond the recording.
func (r *Replayer) SeekToTimestamp(ts float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return fmt.Errorf("recording has no frames")
	}
	i := sort.Search(len(r.frames), func(i int) bool { return r.frames[i].Timestamp >= ts })
	if i == len(r.frames) {
		i = len(r.frames) - 1
	}
	r.current = i
	return nil
}

// ReadFrame returns the current frame and advances. It returns io.EOF at
// the end of the recording.
func (r *Replayer) ReadFrame() (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current >= len(r.frames) {
		return nil, io.EOF
	}
	f := &r.frames[r.current]
	r.current++
	return f, nil
}
