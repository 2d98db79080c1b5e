package main

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/lidarsim/internal/config"
	"github.com/banshee-data/lidarsim/internal/fsutil"
	"github.com/banshee-data/lidarsim/internal/lidar"
	"github.com/banshee-data/lidarsim/internal/lidar/lidardb"
	"github.com/banshee-data/lidarsim/internal/lidar/recorder"
	"github.com/banshee-data/lidarsim/internal/monitoring"
	"github.com/banshee-data/lidarsim/internal/timeutil"
)

// sessionOptions are the command-line overrides applied on top of a
// session file.
type sessionOptions struct {
	OutDir         string
	Database       string
	Seed           int64 // negative: use the file's seed or the clock
	ReopenPerWrite bool
	Registerer     prometheus.Registerer
	Clock          timeutil.Clock
}

// simSession is everything one run owns.
type simSession struct {
	cfg       *config.SessionConfig
	poses     lidar.PoseSource
	sensor    *lidar.Sensor
	recorder  *recorder.CSVRecorder
	db        *lidardb.LidarDB
	sessionID string
	metrics   *monitoring.SensorCollector
}

// buildSession composes the scene, pose source, sinks and sensor described
// by cfg.
func buildSession(cfg *config.SessionConfig, o sessionOptions) (*simSession, error) {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	world, err := cfg.BuildScene()
	if err != nil {
		return nil, err
	}
	poses, err := cfg.PoseSource()
	if err != nil {
		return nil, err
	}
	scfg := cfg.SensorConfig()

	metrics, err := monitoring.NewSensorCollector(o.Registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := &simSession{cfg: cfg, poses: poses, metrics: metrics, sessionID: uuid.NewString()}

	dbPath := cfg.Output.GetDatabase()
	if o.Database != "" {
		dbPath = o.Database
	}
	var sinks recorder.Tee
	if dbPath != "" {
		if dbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		s.db, err = lidardb.NewLidarDB(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to lidar database: %w", err)
		}
		if version, dirty, err := s.db.MigrateVersion(); err == nil {
			log.Printf("lidar database %s at schema version %d (dirty: %v)", dbPath, version, dirty)
		}
		s.sessionID, err = s.db.StartSession(cfg.Name, scfg.UseLocalCoordinates, scfg)
		if err != nil {
			s.db.Close()
			return nil, err
		}
		log.Printf("recording session %s to database %s", s.sessionID, dbPath)
	}

	outDir := cfg.Output.GetDirectory()
	if o.OutDir != "" {
		outDir = o.OutDir
	}
	s.recorder = recorder.NewCSVRecorder(recorder.Config{
		Path:             recorder.OutputPath(outDir, cfg.Output.GetFileName()),
		FS:               fsutil.OSFileSystem{},
		ReopenPerWrite:   o.ReopenPerWrite || cfg.Output.GetReopenPerWrite(),
		WriteMetadata:    cfg.Output.GetWriteMetadata(),
		SessionID:        s.sessionID,
		SensorName:       cfg.Name,
		BeamCount:        scfg.BeamCount,
		LocalCoordinates: scfg.UseLocalCoordinates,
	})
	// An unopenable file is not fatal; the recorder retries on each frame.
	if err := s.recorder.Start(); err != nil {
		log.Printf("Warning: %v", err)
	}
	sinks = append(sinks, s.recorder)
	if s.db != nil {
		sinks = append(sinks, lidardb.NewFrameStore(s.db, s.sessionID))
	}

	s.sensor, err = lidar.NewSensor(scfg, lidar.SensorDeps{
		World:    world,
		Renderer: world,
		Poses:    poses,
		Rand:     newRand(cfg, o),
		Sink:     sinks,
		Clock:    o.Clock,
		Metrics:  metrics,
	})
	if err != nil {
		sinks.Close()
		// A session that never ran is not worth keeping.
		if s.db != nil {
			if derr := s.db.DeleteSession(s.sessionID); derr != nil {
				log.Printf("failed to delete unused session %s: %v", s.sessionID, derr)
			}
		}
		s.closeDB()
		return nil, err
	}
	return s, nil
}

// newRand seeds from the flag, then the session file, then the clock.
func newRand(cfg *config.SessionConfig, o sessionOptions) *rand.Rand {
	var seed uint64
	switch fileSeed, ok := cfg.GetSeed(); {
	case o.Seed >= 0:
		seed = uint64(o.Seed)
	case ok:
		seed = fileSeed
	default:
		seed = uint64(o.Clock.Now().UnixNano())
	}
	log.Printf("random seed %d", seed)
	return rand.New(rand.NewPCG(seed, seed>>1))
}

// revolutionTicks is the number of ticks for one full turn.
func revolutionTicks(cfg lidar.SensorConfig) uint64 {
	return uint64(math.Ceil(360 / cfg.AngularResolution))
}

func (s *simSession) closeDB() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Printf("failed to close lidar database: %v", err)
	}
	s.db = nil
}
