// Command lidarsim runs a simulated spinning lidar through a scene described
// by a session file and records every frame to CSV and, optionally, SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/lidarsim/internal/config"
	"github.com/banshee-data/lidarsim/internal/monitoring"
	"github.com/banshee-data/lidarsim/internal/motion"
	"github.com/banshee-data/lidarsim/internal/sim"
	"github.com/banshee-data/lidarsim/internal/timeutil"
	"github.com/banshee-data/lidarsim/internal/version"
)

var (
	configPath     = flag.String("config", config.DefaultConfigPath, "Path to a session file (.yaml, .yml or .json)")
	outDir         = flag.String("out", "", "Override the output directory")
	dbPath         = flag.String("db", "", "Override the SQLite database path")
	ticks          = flag.Uint64("ticks", 0, "Number of ticks to run; 0 runs one full revolution")
	forever        = flag.Bool("forever", false, "Run until interrupted")
	seed           = flag.Int64("seed", -1, "RNG seed; negative uses the session seed or the clock")
	metricsListen  = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9091)")
	reopenPerWrite = flag.Bool("reopen-per-write", false, "Reopen the CSV file for every frame")
	progress       = flag.Uint64("progress", 0, "Log progress every N ticks; 0 disables")
	showVersion    = flag.Bool("version", false, "Print the version and exit")
)

// runOptions are the resolved command-line settings for one run.
type runOptions struct {
	Session       sessionOptions
	Ticks         uint64
	Forever       bool
	ProgressEvery uint64
	MetricsListen string
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("lidarsim", version.String())
		return
	}
	log.Printf("lidarsim %s", version.String())

	cfg, err := config.LoadSessionConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load session %s: %v", *configPath, err)
	}
	log.Printf("loaded session %q from %s", cfg.Name, *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		Session: sessionOptions{
			OutDir:         *outDir,
			Database:       *dbPath,
			Seed:           *seed,
			ReopenPerWrite: *reopenPerWrite,
			Registerer:     prometheus.NewRegistry(),
		},
		Ticks:         *ticks,
		Forever:       *forever,
		ProgressEvery: *progress,
		MetricsListen: *metricsListen,
	}
	if _, err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
}

// run executes one session. Cancelling ctx ends the run cleanly.
func run(ctx context.Context, cfg *config.SessionConfig, o runOptions) (sim.Summary, error) {
	if o.Session.Clock == nil {
		o.Session.Clock = timeutil.RealClock{}
	}
	s, err := buildSession(cfg, o.Session)
	if err != nil {
		return sim.Summary{}, err
	}
	defer s.closeDB()

	n := o.Ticks
	switch {
	case o.Forever:
		n = 0
	case n == 0:
		n = revolutionTicks(s.sensor.Config())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if o.MetricsListen != "" {
		serveMetrics(ctx, &wg, o.MetricsListen, s.metrics)
	}

	runner, err := sim.NewRunner(s.sensor, sim.RunnerConfig{
		Ticks:         n,
		ProgressEvery: o.ProgressEvery,
		Clock:         o.Session.Clock,
	})
	if err != nil {
		s.sensor.Close()
		return sim.Summary{}, err
	}

	sum, err := runner.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return sum, err
	}

	logSummary(s, sum)
	return sum, nil
}

// serveMetrics runs the metrics server until ctx is done.
func serveMetrics(ctx context.Context, wg *sync.WaitGroup, addr string, c *monitoring.SensorCollector) {
	server := monitoring.NewMetricsServer(addr, c)
	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			log.Printf("serving metrics on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server forced to shutdown: %v", err)
			server.Close()
		}
	}()
}

func logSummary(s *simSession, sum sim.Summary) {
	log.Printf("session %s: %d ticks, %d/%d beams hit (%.1f%%), sim %v in %v",
		s.sessionID, sum.Ticks, sum.Hits, sum.Beams, 100*sum.HitRatio(), sum.SimTime, sum.Wall.Round(time.Millisecond))
	log.Printf("recorded %d frames to %s", s.recorder.FrameCount(), s.recorder.Path())
	if traj, ok := s.poses.(*motion.Trajectory); ok {
		log.Printf("trajectory: travelled %.1f cm, finished: %v", traj.Distance(), traj.Finished())
	}
	if s.db == nil {
		return
	}
	stats, err := s.db.Stats(s.sessionID)
	if err != nil {
		log.Printf("failed to read session stats: %v", err)
		return
	}
	log.Printf("database: %d frames, %d beams, %d hits, %d dropped", stats.Frames, stats.Beams, stats.Hits, stats.Dropped)
}
