package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/lidarsim/internal/geom"
	"github.com/banshee-data/lidarsim/internal/lidar"
	"github.com/banshee-data/lidarsim/internal/lidar/recorder"
	"github.com/banshee-data/lidarsim/internal/motion"
	"github.com/banshee-data/lidarsim/internal/scene"
)

// DefaultConfigPath is where cmd/lidarsim looks for a session file when
// none is given.
const DefaultConfigPath = "config/session.example.yaml"

// maxFileSize bounds session files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Vec3 is a position or extent in centimetres.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// R3 converts to the vector type used by the geometry code.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Colour is an 8-bit RGB surface colour. Only red affects intensity.
type Colour struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// RGBA returns the opaque colour.
func (c Colour) RGBA() color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255} }

// WaypointConfig is one stop along a motion path.
type WaypointConfig struct {
	Location Vec3         `json:"location" yaml:"location"`
	Rotation geom.Rotator `json:"rotation" yaml:"rotation"`
}

// MotionConfig moves the sensor along waypoints instead of holding a
// fixed pose.
type MotionConfig struct {
	Speed     *float64         `json:"speed,omitempty" yaml:"speed,omitempty"` // cm/s
	Loop      *bool            `json:"loop,omitempty" yaml:"loop,omitempty"`
	Waypoints []WaypointConfig `json:"waypoints" yaml:"waypoints"`
}

// GetSpeed returns the speed or the default of 100 cm/s.
func (m *MotionConfig) GetSpeed() float64 {
	if m.Speed == nil {
		return 100
	}
	return *m.Speed
}

// GetLoop returns the loop flag or the default.
func (m *MotionConfig) GetLoop() bool {
	if m.Loop == nil {
		return false
	}
	return *m.Loop
}

// SensorParams overrides the built-in sensor defaults. Omitted fields keep
// their defaults, so partial files are safe.
type SensorParams struct {
	MaxRange               *float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	BeamCount              *int     `json:"beam_count,omitempty" yaml:"beam_count,omitempty"`
	MaxElevation           *float64 `json:"max_elevation,omitempty" yaml:"max_elevation,omitempty"`
	MinElevation           *float64 `json:"min_elevation,omitempty" yaml:"min_elevation,omitempty"`
	AngularResolution      *float64 `json:"angular_resolution,omitempty" yaml:"angular_resolution,omitempty"`
	RangeAccuracy          *float64 `json:"range_accuracy,omitempty" yaml:"range_accuracy,omitempty"`
	BeamOriginOffset       *float64 `json:"beam_origin_offset,omitempty" yaml:"beam_origin_offset,omitempty"`
	DropoutAmplitude       *float64 `json:"dropout_amplitude,omitempty" yaml:"dropout_amplitude,omitempty"`
	FalloffStdDev          *float64 `json:"falloff_std_dev,omitempty" yaml:"falloff_std_dev,omitempty"`
	AngleWeight            *float64 `json:"angle_weight,omitempty" yaml:"angle_weight,omitempty"`
	UseLocalCoordinates    *bool    `json:"use_local_coordinates,omitempty" yaml:"use_local_coordinates,omitempty"`
	UseRealClockTimestamps *bool    `json:"use_real_clock_timestamps,omitempty" yaml:"use_real_clock_timestamps,omitempty"`
	SimFrameRate           *float64 `json:"sim_frame_rate,omitempty" yaml:"sim_frame_rate,omitempty"`
	RealFrameRateCap       *float64 `json:"real_frame_rate_cap,omitempty" yaml:"real_frame_rate_cap,omitempty"`
	RenderWidth            *int     `json:"render_width,omitempty" yaml:"render_width,omitempty"`
	RenderHeight           *int     `json:"render_height,omitempty" yaml:"render_height,omitempty"`
}

// OutputConfig says where a session is recorded.
type OutputConfig struct {
	Directory      *string `json:"directory,omitempty" yaml:"directory,omitempty"`
	FileName       *string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	ReopenPerWrite *bool   `json:"reopen_per_write,omitempty" yaml:"reopen_per_write,omitempty"`
	WriteMetadata  *bool   `json:"write_metadata,omitempty" yaml:"write_metadata,omitempty"`
	// Database is an optional SQLite path that receives every frame too.
	Database *string `json:"database,omitempty" yaml:"database,omitempty"`
}

// ShapeConfig describes one solid. Type selects which fields apply:
// "plane" uses Point and Normal, "box" uses Center and Size, "sphere" uses
// Center and Radius.
type ShapeConfig struct {
	Type   string  `json:"type" yaml:"type"`
	Point  Vec3    `json:"point,omitempty" yaml:"point,omitempty"`
	Normal Vec3    `json:"normal,omitempty" yaml:"normal,omitempty"`
	Center Vec3    `json:"center,omitempty" yaml:"center,omitempty"`
	Size   Vec3    `json:"size,omitempty" yaml:"size,omitempty"`
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	Colour *Colour `json:"colour,omitempty" yaml:"colour,omitempty"`
}

// SceneConfig is the synthetic world the sensor scans.
type SceneConfig struct {
	Background *Colour       `json:"background,omitempty" yaml:"background,omitempty"`
	Shapes     []ShapeConfig `json:"shapes" yaml:"shapes"`
}

// SessionConfig is the root of a session file.
type SessionConfig struct {
	Name     string        `json:"name" yaml:"name"`
	Location *Vec3         `json:"location,omitempty" yaml:"location,omitempty"`
	Rotation *geom.Rotator `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Motion   *MotionConfig `json:"motion,omitempty" yaml:"motion,omitempty"`
	Seed     *uint64       `json:"seed,omitempty" yaml:"seed,omitempty"`
	Sensor   SensorParams  `json:"sensor" yaml:"sensor"`
	Output   OutputConfig  `json:"output" yaml:"output"`
	Scene    SceneConfig   `json:"scene" yaml:"scene"`
}

// ValidationError lists every problem found in a session file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid session configuration:\n - " + strings.Join(e.Problems, "\n - ")
}

// LoadSessionConfig loads a session from a .json, .yaml or .yml file and
// validates it.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseSessionConfig(data, ext == ".json")
}

// ParseSessionConfig decodes and validates a session document.
func ParseSessionConfig(data []byte, isJSON bool) (*SessionConfig, error) {
	cfg := &SessionConfig{}
	if isJSON {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem together.
func (c *SessionConfig) Validate() error {
	var problems []string
	add := func(format string, v ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, v...))
	}

	if strings.TrimSpace(c.Name) == "" {
		add("name is required")
	}

	hasPose := c.Location != nil
	if c.Rotation != nil && !hasPose {
		add("rotation cannot be specified without a location")
	}
	hasWaypoints := c.Motion != nil && len(c.Motion.Waypoints) > 0
	if c.Motion != nil && !hasWaypoints {
		add("motion needs at least one waypoint")
	}
	if c.Motion != nil && !(c.Motion.GetSpeed() >= 0) {
		add("motion speed must be non-negative, got %v", c.Motion.GetSpeed())
	}
	if hasWaypoints && hasPose {
		add("should not have initial position and waypoints specified, use one or the other")
	}
	if c.Motion == nil && !hasPose {
		add("needs either an initial position or waypoints specified")
	}

	if err := c.SensorConfig().Validate(); err != nil {
		var verr *lidar.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				add("sensor: %s", p)
			}
		} else {
			add("sensor: %v", err)
		}
	}

	for i, s := range c.Scene.Shapes {
		if err := s.validate(); err != nil {
			add("scene.shapes[%d]: %v", i, err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (s ShapeConfig) validate() error {
	switch strings.ToLower(s.Type) {
	case "plane":
		if s.Normal.R3() == (r3.Vec{}) {
			return fmt.Errorf("plane normal must be non-zero")
		}
	case "box":
		if !(s.Size.X > 0 && s.Size.Y > 0 && s.Size.Z > 0) {
			return fmt.Errorf("box size must be positive on every axis, got %+v", s.Size)
		}
	case "sphere":
		if !(s.Radius > 0) {
			return fmt.Errorf("sphere radius must be positive, got %v", s.Radius)
		}
	default:
		return fmt.Errorf("unknown shape type %q", s.Type)
	}
	return nil
}

// SensorConfig applies the file's overrides to the sensor defaults.
func (c *SessionConfig) SensorConfig() lidar.SensorConfig {
	cfg := lidar.DefaultSensorConfig()
	p := c.Sensor
	setFloat(&cfg.MaxRange, p.MaxRange)
	setInt(&cfg.BeamCount, p.BeamCount)
	setFloat(&cfg.MaxElevation, p.MaxElevation)
	setFloat(&cfg.MinElevation, p.MinElevation)
	setFloat(&cfg.AngularResolution, p.AngularResolution)
	setFloat(&cfg.RangeAccuracy, p.RangeAccuracy)
	setFloat(&cfg.BeamOriginOffset, p.BeamOriginOffset)
	setFloat(&cfg.DropoutAmplitude, p.DropoutAmplitude)
	setFloat(&cfg.FalloffStdDev, p.FalloffStdDev)
	setFloat(&cfg.AngleWeight, p.AngleWeight)
	setBool(&cfg.UseLocalCoordinates, p.UseLocalCoordinates)
	setBool(&cfg.UseRealClockTimestamps, p.UseRealClockTimestamps)
	setFloat(&cfg.SimFrameRate, p.SimFrameRate)
	setFloat(&cfg.RealFrameRateCap, p.RealFrameRateCap)
	setInt(&cfg.RenderWidth, p.RenderWidth)
	setInt(&cfg.RenderHeight, p.RenderHeight)
	return cfg
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// PoseSource returns a fixed pose or a waypoint trajectory.
func (c *SessionConfig) PoseSource() (lidar.PoseSource, error) {
	if c.Motion != nil && len(c.Motion.Waypoints) > 0 {
		wps := make([]motion.Waypoint, len(c.Motion.Waypoints))
		for i, w := range c.Motion.Waypoints {
			wps[i] = motion.Waypoint{Location: w.Location.R3(), Rotation: w.Rotation}
		}
		t, err := motion.NewTrajectory(wps, c.Motion.GetSpeed(), c.Motion.GetLoop())
		if err != nil {
			return nil, fmt.Errorf("failed to build trajectory: %w", err)
		}
		return t, nil
	}
	var loc Vec3
	var rot geom.Rotator
	if c.Location != nil {
		loc = *c.Location
	}
	if c.Rotation != nil {
		rot = *c.Rotation
	}
	return motion.Static(loc.R3(), rot), nil
}

// BuildScene assembles the configured shapes. Shapes without a colour are
// mid-grey.
func (c *SessionConfig) BuildScene() (*scene.Scene, error) {
	s := scene.New()
	if c.Scene.Background != nil {
		s.Background = c.Scene.Background.RGBA()
	}
	for i, sc := range c.Scene.Shapes {
		if err := sc.validate(); err != nil {
			return nil, fmt.Errorf("scene.shapes[%d]: %w", i, err)
		}
		colour := scene.DefaultColour
		if sc.Colour != nil {
			colour = sc.Colour.RGBA()
		}
		switch strings.ToLower(sc.Type) {
		case "plane":
			s.Add(scene.NewPlane(sc.Point.R3(), sc.Normal.R3(), colour))
		case "box":
			s.Add(scene.NewBox(sc.Center.R3(), sc.Size.R3(), colour))
		case "sphere":
			s.Add(scene.Sphere{Center: sc.Center.R3(), Radius: sc.Radius, Colour: colour})
		}
	}
	return s, nil
}

// GetDirectory returns the output directory or the working directory.
func (o OutputConfig) GetDirectory() string {
	if o.Directory == nil || *o.Directory == "" {
		return "."
	}
	return *o.Directory
}

// GetFileName returns the recording file name or the default.
func (o OutputConfig) GetFileName() string {
	if o.FileName == nil || *o.FileName == "" {
		return recorder.DefaultFileName
	}
	return *o.FileName
}

// GetReopenPerWrite returns the reopen_per_write value or the default.
func (o OutputConfig) GetReopenPerWrite() bool {
	if o.ReopenPerWrite == nil {
		return false
	}
	return *o.ReopenPerWrite
}

// GetWriteMetadata returns the write_metadata value or the default.
func (o OutputConfig) GetWriteMetadata() bool {
	if o.WriteMetadata == nil {
		return true
	}
	return *o.WriteMetadata
}

// GetDatabase returns the database path, empty when disabled.
func (o OutputConfig) GetDatabase() string {
	if o.Database == nil {
		return ""
	}
	return *o.Database
}

// OutputPath is the full path of the CSV recording.
func (c *SessionConfig) OutputPath() string {
	return recorder.OutputPath(c.Output.GetDirectory(), c.Output.GetFileName())
}

// GetSeed returns the RNG seed and whether one was set.
func (c *SessionConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}
