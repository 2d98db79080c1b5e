// Command lidardb inspects and maintains a lidarsim SQLite database.
//
// Usage:
//
//	go run ./cmd/tools/lidardb -db out/lidar.db status
//	go run ./cmd/tools/lidardb -db out/lidar.db sessions
//	go run ./cmd/tools/lidardb -db out/lidar.db delete <session-id>
//	go run ./cmd/tools/lidardb -db out/lidar.db down
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/lidarsim/internal/lidar/lidardb"
)

func main() {
	dbPath := flag.String("db", "lidar.db", "Path to the lidar SQLite database")
	flag.Usage = printHelp
	flag.Parse()

	if flag.NArg() < 1 {
		printHelp()
		os.Exit(1)
	}
	if err := run(flag.Args(), *dbPath, os.Stdout); err != nil {
		log.Fatalf("lidardb %s: %v", flag.Arg(0), err)
	}
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: lidardb [-db path] <command>

Commands:
  status          show the schema version
  sessions        list recorded sessions, newest first
  delete <id>     delete a session and its frames
  down            roll back the most recent schema migration`)
}

// run opens the database, which applies pending migrations, and executes
// one command.
func run(args []string, dbPath string, w io.Writer) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("failed to open lidar database: %w", err)
	}
	db, err := lidardb.NewLidarDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch args[0] {
	case "status":
		return printVersion(db, w)

	case "sessions":
		sessions, err := db.ListSessions()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tSENSOR\tFRAME\tSTARTED\tFRAMES\tPOINTS")
		for _, s := range sessions {
			started := time.Unix(0, int64(s.StartTimestamp*1e9)).UTC().Format(time.RFC3339)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", s.SessionID, s.SensorName, s.CoordinateFrame, started, s.FrameCount, s.PointCount)
		}
		return tw.Flush()

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: lidardb delete <session-id>")
		}
		if err := db.DeleteSession(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(w, "deleted session %s\n", args[1])
		return nil

	case "down":
		log.Printf("Rolling back one migration...")
		if err := db.MigrateDown(); err != nil {
			return err
		}
		return printVersion(db, w)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printVersion(db *lidardb.LidarDB, w io.Writer) error {
	version, dirty, err := db.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "schema version %d (dirty: %v)\n", version, dirty)
	return nil
}
