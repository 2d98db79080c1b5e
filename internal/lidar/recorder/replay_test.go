package recorder

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarsim/internal/fsutil"
)

func recordFrames(t *testing.T, fs *fsutil.MemoryFileSystem, metadata bool) {
	t.Helper()
	rec := NewCSVRecorder(Config{Path: "run.csv", FS: fs, WriteMetadata: metadata, SensorName: "roof", BeamCount: 2})
	require.NoError(t, rec.Start())
	for i := 0; i < 4; i++ {
		ts := float64(i) * 0.25
		require.NoError(t, rec.WriteFrame(testFrame(uint64(i), ts, r3.Vec{X: float64(i + 1)}, r3.Vec{})))
	}
	require.NoError(t, rec.Close())
}

func TestReplayer_RoundTrip(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	recordFrames(t, fs, true)

	r, err := NewReplayer(fs, "run.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalFrames())
	assert.Equal(t, "roof", r.Header().SensorName)
	assert.Equal(t, 0.75, r.Header().EndTimestamp)

	for i := 0; i < 4; i++ {
		f, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, i, f.Index)
		require.Len(t, f.Rows, 2)
		assert.True(t, f.Rows[0].Hit())
		assert.False(t, f.Rows[1].Hit())
		assert.Equal(t, float64(i+1), f.Rows[0].X)
		assert.Equal(t, 10.0, f.Rows[1].Intensity)
	}
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayer_GroupsByTimestampWithoutSidecar(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	recordFrames(t, fs, false)

	r, err := NewReplayer(fs, "run.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalFrames())
	assert.Len(t, r.Frames()[2].Rows, 2)
}

func TestReplayer_SeekToTimestamp(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	recordFrames(t, fs, true)
	r, err := NewReplayer(fs, "run.csv")
	require.NoError(t, err)

	require.NoError(t, r.SeekToTimestamp(0.3))
	assert.Equal(t, 2, r.CurrentFrame())
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f.Timestamp)
	assert.Equal(t, 3, r.CurrentFrame())

	require.NoError(t, r.SeekToTimestamp(0.25))
	assert.Equal(t, 1, r.CurrentFrame())
	require.NoError(t, r.SeekToTimestamp(99))
	assert.Equal(t, 3, r.CurrentFrame())
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty"},
		{"wrong header", "a,b,c,d,e\n", "unexpected recording header"},
		{"short row", Header + "\n1,2,3\n", "wrong number of fields"},
		{"not a number", Header + "\n0,1,2,x,4\n", "field 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGroupFrames_RejectsPartialFrame(t *testing.T) {
	rows := make([]Row, 5)
	_, err := GroupFrames(rows, 2)
	assert.Error(t, err)
}
