// Command plot-recording renders a lidarsim recording as PNG plots and an
// interactive HTML scatter. It reads either a CSV recording or a session
// stored in the SQLite database.
//
// Usage:
//
//	go run ./cmd/tools/plot-recording -in out/lidar.csv -out-dir plots
//	go run ./cmd/tools/plot-recording -db out/lidar.db -from 0.5 -to 1.5
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lidarsim/internal/fsutil"
	"github.com/banshee-data/lidarsim/internal/lidar/lidardb"
	"github.com/banshee-data/lidarsim/internal/lidar/recorder"
	"github.com/banshee-data/lidarsim/internal/lidar/report"
)

// plotOptions are the resolved command-line settings.
type plotOptions struct {
	In        string
	DB        string
	Session   string // empty picks the newest session in DB
	OutDir    string
	Title     string
	MaxPoints int
	From, To  float64 // timestamp window in seconds; To <= 0 means no upper bound
}

func main() {
	var o plotOptions
	flag.StringVar(&o.In, "in", "", "Path to a recording CSV")
	flag.StringVar(&o.DB, "db", "", "Path to a lidar SQLite database (instead of -in)")
	flag.StringVar(&o.Session, "session", "", "Session ID to plot from -db; defaults to the newest")
	flag.StringVar(&o.OutDir, "out-dir", "", "Directory for the plots; defaults to the input's directory")
	flag.StringVar(&o.Title, "title", "", "Plot title; defaults to the recording name")
	flag.IntVar(&o.MaxPoints, "max-points", 20000, "Maximum points in the HTML scatter")
	flag.Float64Var(&o.From, "from", 0, "Skip frames before this timestamp (seconds)")
	flag.Float64Var(&o.To, "to", 0, "Skip frames after this timestamp (seconds); 0 means the end")
	flag.Parse()

	if (o.In == "") == (o.DB == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -in or -db is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := plotRecording(o); err != nil {
		log.Fatalf("plot-recording: %v", err)
	}
}

// plotRecording writes <name>_topdown.png, <name>_intensity.png and
// <name>.html for the selected recording.
func plotRecording(o plotOptions) error {
	var (
		frames []recorder.Frame
		base   string
		err    error
	)
	if o.DB != "" {
		frames, base, err = loadSession(o)
	} else {
		frames, err = loadRecording(o)
		base = strings.TrimSuffix(filepath.Base(o.In), filepath.Ext(o.In))
	}
	if err != nil {
		return err
	}

	sum := report.Summarize(frames)
	log.Printf("%s: %d frames, %d rows, %d hits (%.1f%%), %.3fs", base, sum.Frames, sum.Rows, sum.Hits, 100*sum.HitRatio(), sum.Duration)
	if sum.Hits > 0 {
		log.Printf("range mean %.1fcm stddev %.1fcm, intensity %.0f-%.0f", sum.MeanRange, sum.RangeStdDev, sum.MinIntensity, sum.MaxIntensity)
	}

	outDir := o.OutDir
	if outDir == "" && o.DB != "" {
		outDir = filepath.Dir(o.DB)
	} else if outDir == "" {
		outDir = filepath.Dir(o.In)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	title := o.Title
	if title == "" {
		title = base
	}

	outputs := []struct {
		suffix string
		write  func(f *os.File) error
	}{
		{"_topdown.png", func(f *os.File) error {
			return report.WriteTopDown(f, frames, report.PlotOptions{Title: title})
		}},
		{"_intensity.png", func(f *os.File) error {
			return report.WriteIntensityHistogram(f, frames, report.PlotOptions{})
		}},
		{".html", func(f *os.File) error {
			return report.WriteScatterHTML(f, frames, report.HTMLOptions{Title: title, MaxPoints: o.MaxPoints})
		}},
	}
	for _, out := range outputs {
		path := filepath.Join(outDir, base+out.suffix)
		if err := writeFile(path, out.write); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func upperBound(to float64) float64 {
	if to <= 0 {
		return math.MaxFloat64
	}
	return to
}

// loadRecording reads the CSV frames inside the timestamp window.
func loadRecording(o plotOptions) ([]recorder.Frame, error) {
	rp, err := recorder.NewReplayer(fsutil.OSFileSystem{}, o.In)
	if err != nil {
		return nil, err
	}
	if rp.TotalFrames() == 0 {
		return nil, nil
	}
	if err := rp.SeekToTimestamp(o.From); err != nil {
		return nil, err
	}
	first := rp.CurrentFrame()
	to := upperBound(o.To)

	var frames []recorder.Frame
	for {
		f, err := rp.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if f.Timestamp < o.From || f.Timestamp > to {
			break
		}
		frames = append(frames, *f)
	}
	log.Printf("using frames [%d, %d) of %d", first, first+len(frames), rp.TotalFrames())
	return frames, nil
}

// loadSession reads a stored session's hits in world coordinates. The
// returned name labels the output files.
func loadSession(o plotOptions) ([]recorder.Frame, string, error) {
	if _, err := os.Stat(o.DB); err != nil {
		return nil, "", fmt.Errorf("failed to open lidar database: %w", err)
	}
	db, err := lidardb.NewLidarDB(o.DB)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	id := o.Session
	if id != "" {
		if _, err := db.GetSession(id); err != nil {
			return nil, "", err
		}
	} else {
		sessions, err := db.ListSessions()
		if err != nil {
			return nil, "", err
		}
		if len(sessions) == 0 {
			return nil, "", lidardb.ErrSessionNotFound
		}
		id = sessions[0].SessionID
		log.Printf("plotting newest session %s (%s, %d frames)", id, sessions[0].SensorName, sessions[0].FrameCount)
	}

	stored, err := db.Frames(id, o.From, upperBound(o.To))
	if err != nil {
		return nil, "", err
	}
	frames := make([]recorder.Frame, 0, len(stored))
	for i, sf := range stored {
		points, err := db.WorldPoints(id, sf)
		if err != nil {
			return nil, "", err
		}
		f := recorder.Frame{Index: i, Timestamp: sf.Timestamp, Rows: make([]recorder.Row, 0, len(points))}
		for _, p := range points {
			f.Rows = append(f.Rows, recorder.Row{Timestamp: sf.Timestamp, X: p.X, Y: p.Y, Z: p.Z, Intensity: p.Intensity})
		}
		frames = append(frames, f)
	}

	name := id
	if len(name) > 8 {
		name = name[:8]
	}
	return frames, "session-" + name, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
