// Package report turns a finished recording into summary statistics, static
// PNG plots and an interactive HTML scatter.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lidarsim/internal/lidar/recorder"
)

// ErrNoReturns is returned when a plot needs at least one hit.
var ErrNoReturns = errors.New("recording has no returns")

// Summary describes a recording.
type Summary struct {
	Frames        int
	Rows          int
	Hits          int
	Duration      float64 // seconds between first and last frame
	MeanRange     float64 // cm from the recording origin, hits only
	RangeStdDev   float64
	MinIntensity  float64
	MaxIntensity  float64
	MeanIntensity float64
	MinX, MaxX    float64
	MinY, MaxY    float64
}

// HitRatio is the fraction of rows that carry a return.
func (s Summary) HitRatio() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Rows)
}

// Summarize computes statistics over every hit in frames. Ranges are
// measured from the coordinate origin, which is the sensor for recordings
// in the local frame.
func Summarize(frames []recorder.Frame) Summary {
	var s Summary
	s.Frames = len(frames)
	if len(frames) > 0 {
		s.Duration = frames[len(frames)-1].Timestamp - frames[0].Timestamp
	}

	var xs, ys, ranges, intensities []float64
	for _, f := range frames {
		s.Rows += len(f.Rows)
		for _, r := range f.Rows {
			if !r.Hit() {
				continue
			}
			xs = append(xs, r.X)
			ys = append(ys, r.Y)
			ranges = append(ranges, math.Sqrt(r.X*r.X+r.Y*r.Y+r.Z*r.Z))
			intensities = append(intensities, r.Intensity)
		}
	}
	s.Hits = len(xs)
	if s.Hits == 0 {
		return s
	}

	s.MeanRange, s.RangeStdDev = stat.MeanStdDev(ranges, nil)
	if math.IsNaN(s.RangeStdDev) {
		s.RangeStdDev = 0
	}
	s.MeanIntensity = stat.Mean(intensities, nil)
	s.MinIntensity, s.MaxIntensity = floats.Min(intensities), floats.Max(intensities)
	s.MinX, s.MaxX = floats.Min(xs), floats.Max(xs)
	s.MinY, s.MaxY = floats.Min(ys), floats.Max(ys)
	return s
}

// PlotOptions control the PNG plots.
type PlotOptions struct {
	Title string
	// Buckets is the number of intensity colour bands. Defaults to 8.
	Buckets int
	Width   vg.Length
	Height  vg.Length
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Buckets <= 0 {
		o.Buckets = 8
	}
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 8 * vg.Inch
	}
	if o.Title == "" {
		o.Title = "Lidar returns (top down)"
	}
	return o
}

// WriteTopDown writes a PNG of every hit projected onto the X/Y plane, in
// metres, coloured by intensity band.
func WriteTopDown(w io.Writer, frames []recorder.Frame, o PlotOptions) error {
	o = o.withDefaults()
	sum := Summarize(frames)
	if sum.Hits == 0 {
		return ErrNoReturns
	}

	lo, hi := sum.MinIntensity, sum.MaxIntensity
	bands := make([]plotter.XYs, o.Buckets)
	for _, f := range frames {
		for _, r := range f.Rows {
			if !r.Hit() {
				continue
			}
			b := band(r.Intensity, lo, hi, o.Buckets)
			bands[b] = append(bands[b], plotter.XY{X: r.X / 100, Y: r.Y / 100})
		}
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(o.Buckets)
	for i, pts := range bands {
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = colors[i]
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(bandLabel(i, lo, hi, o.Buckets), sc)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return writePNG(w, p, o)
}

// WriteIntensityHistogram writes a PNG histogram of hit intensities.
func WriteIntensityHistogram(w io.Writer, frames []recorder.Frame, o PlotOptions) error {
	o = o.withDefaults()
	var vals plotter.Values
	for _, f := range frames {
		for _, r := range f.Rows {
			if r.Hit() {
				vals = append(vals, r.Intensity)
			}
		}
	}
	if len(vals) == 0 {
		return ErrNoReturns
	}

	p := plot.New()
	p.Title.Text = "Return intensity"
	p.X.Label.Text = "Intensity"
	p.Y.Label.Text = "Returns"

	bins := 4 * o.Buckets
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 196, G: 64, B: 64, A: 255}
	p.Add(h)

	return writePNG(w, p, PlotOptions{Width: o.Width, Height: o.Height / 2})
}

func writePNG(w io.Writer, p *plot.Plot, o PlotOptions) error {
	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// band maps v in [lo, hi] onto [0, n).
func band(v, lo, hi float64, n int) int {
	if hi <= lo {
		return 0
	}
	b := int(float64(n) * (v - lo) / (hi - lo))
	if b >= n {
		b = n - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

func bandLabel(i int, lo, hi float64, n int) string {
	step := (hi - lo) / float64(n)
	return fmt.Sprintf("%.0f-%.0f", lo+float64(i)*step, lo+float64(i+1)*step)
}

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// HTMLOptions control the interactive scatter.
type HTMLOptions struct {
	Title string
	// MaxPoints caps the plotted hits by striding. Defaults to 20000.
	MaxPoints int
	// AssetsHost overrides where the page loads echarts from.
	AssetsHost string
}

// WriteScatterHTML writes an echarts page plotting hits top down with
// intensity on the colour scale.
func WriteScatterHTML(w io.Writer, frames []recorder.Frame, o HTMLOptions) error {
	if o.MaxPoints <= 0 {
		o.MaxPoints = 20000
	}
	if o.Title == "" {
		o.Title = "Lidar Recording"
	}
	sum := Summarize(frames)
	if sum.Hits == 0 {
		return ErrNoReturns
	}

	stride := 1
	if sum.Hits > o.MaxPoints {
		stride = (sum.Hits + o.MaxPoints - 1) / o.MaxPoints
	}
	data := make([]opts.ScatterData, 0, sum.Hits/stride+1)
	n := 0
	for _, f := range frames {
		for _, r := range f.Rows {
			if !r.Hit() {
				continue
			}
			if n%stride == 0 {
				data = append(data, opts.ScatterData{Value: []interface{}{r.X / 100, r.Y / 100, r.Intensity}})
			}
			n++
		}
	}

	pad := math.Max(
		math.Max(math.Abs(sum.MinX), math.Abs(sum.MaxX)),
		math.Max(math.Abs(sum.MinY), math.Abs(sum.MaxY)),
	)/100 + 1

	initOpts := opts.Initialization{PageTitle: o.Title, Theme: "dark", Width: "900px", Height: "900px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	// Symmetric axes keep the plot square.
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: fmt.Sprintf("frames=%d hits=%d stride=%d", sum.Frames, sum.Hits, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(sum.MinIntensity),
			Max:        float32(math.Max(sum.MaxIntensity, sum.MinIntensity+1)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("returns", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
