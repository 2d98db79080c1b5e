package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/lidar"
	"github.com/banshee-data/lidarsim/internal/lidar/lidardb"
	"github.com/banshee-data/lidarsim/internal/lidar/recorder"
	"github.com/banshee-data/lidarsim/internal/lidar/report"
)

// testFrames is three two-beam ticks 10ms apart.
func testFrames(hit bool) []*lidar.FrameRecord {
	var frames []*lidar.FrameRecord
	for tick := uint64(0); tick < 3; tick++ {
		f := &lidar.FrameRecord{Tick: tick, Timestamp: float64(tick) * 0.01}
		for b := 0; b < 2; b++ {
			smp := lidar.BeamSample{}
			if hit {
				smp.Hit = true
				smp.Point = r3.Vec{X: 100 * float64(tick+1), Y: 50 * float64(b)}
				smp.Intensity = float64(40 * (int(tick) + b))
			}
			f.Samples = append(f.Samples, smp)
		}
		frames = append(frames, f)
	}
	return frames
}

func writeRecording(t *testing.T, dir string, hit bool) string {
	t.Helper()
	path := filepath.Join(dir, "run.csv")
	rec := recorder.NewCSVRecorder(recorder.Config{Path: path, WriteMetadata: true, BeamCount: 2})
	require.NoError(t, rec.Start())
	for _, f := range testFrames(hit) {
		require.NoError(t, rec.WriteFrame(f))
	}
	require.NoError(t, rec.Close())
	return path
}

func writeSession(t *testing.T, dir string) (string, string) {
	t.Helper()
	path := filepath.Join(dir, "lidar.db")
	db, err := lidardb.NewLidarDB(path)
	require.NoError(t, err)
	defer db.Close()

	id, err := db.StartSession("yard", false, lidar.DefaultSensorConfig())
	require.NoError(t, err)
	store := lidardb.NewFrameStore(db, id)
	for _, f := range testFrames(true) {
		require.NoError(t, store.WriteFrame(f))
	}
	require.NoError(t, store.Close())
	return path, id
}

func TestPlotRecording(t *testing.T) {
	dir := t.TempDir()
	in := writeRecording(t, dir, true)
	out := filepath.Join(dir, "plots")

	require.NoError(t, plotRecording(plotOptions{In: in, OutDir: out, MaxPoints: 100}))

	for _, name := range []string{"run_topdown.png", "run_intensity.png"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(data[:4]), name)
	}
	html, err := os.ReadFile(filepath.Join(out, "run.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>run</title>")
}

func TestLoadRecording_Window(t *testing.T) {
	in := writeRecording(t, t.TempDir(), true)

	all, err := loadRecording(plotOptions{In: in})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	frames, err := loadRecording(plotOptions{In: in, From: 0.005, To: 0.015})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.InDelta(t, 0.01, frames[0].Timestamp, 1e-9)

	frames, err = loadRecording(plotOptions{In: in, From: 5})
	require.NoError(t, err)
	assert.Empty(t, frames, "window after the recording")
}

func TestPlotRecording_NoReturns(t *testing.T) {
	dir := t.TempDir()
	in := writeRecording(t, dir, false)

	err := plotRecording(plotOptions{In: in, Title: "empty"})
	require.ErrorIs(t, err, report.ErrNoReturns)
	_, statErr := os.Stat(filepath.Join(dir, "run_topdown.png"))
	assert.True(t, os.IsNotExist(statErr), "failed plots are removed")
}

func TestPlotRecording_MissingInput(t *testing.T) {
	err := plotRecording(plotOptions{In: filepath.Join(t.TempDir(), "missing.csv")})
	assert.ErrorContains(t, err, "failed to read recording")

	err = plotRecording(plotOptions{DB: filepath.Join(t.TempDir(), "missing.db")})
	assert.ErrorContains(t, err, "failed to open lidar database")
}

func TestLoadSession(t *testing.T) {
	path, id := writeSession(t, t.TempDir())

	frames, name, err := loadSession(plotOptions{DB: path})
	require.NoError(t, err)
	assert.Equal(t, "session-"+id[:8], name, "newest session by default")
	require.Len(t, frames, 3)
	require.Len(t, frames[2].Rows, 2)
	assert.Equal(t, 300.0, frames[2].Rows[0].X)
	assert.Equal(t, 50.0, frames[2].Rows[1].Y)

	frames, _, err = loadSession(plotOptions{DB: path, Session: id, From: 0.015})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.InDelta(t, 0.02, frames[0].Timestamp, 1e-9)

	_, _, err = loadSession(plotOptions{DB: path, Session: "nope"})
	assert.ErrorIs(t, err, lidardb.ErrSessionNotFound)
}

func TestPlotRecording_FromDatabase(t *testing.T) {
	dir := t.TempDir()
	path, id := writeSession(t, dir)

	require.NoError(t, plotRecording(plotOptions{DB: path}))
	_, err := os.Stat(filepath.Join(dir, "session-"+id[:8]+"_topdown.png"))
	assert.NoError(t, err)
}
