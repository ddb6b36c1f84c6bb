// Command scansim simulates a planar lidar scanning a polygonal map.
//
//	scansim -config sensor.yaml -map map.json -pose 1,1,0.785
//	scansim -config sensor.yaml -map map.json -trajectory patrol.yaml -db scans.db
//	scansim serve -map map.json -listen :8082
//	scansim migrate up -db scans.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/scansim/internal/config"
	"github.com/banshee-data/scansim/internal/db"
	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/monitor"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/lidar/replay"
	"github.com/banshee-data/scansim/internal/lidar/scanner"
	"github.com/banshee-data/scansim/internal/lidar/storage/sqlite"
	"github.com/banshee-data/scansim/internal/monitoring"
	"github.com/banshee-data/scansim/internal/timeutil"
	"github.com/banshee-data/scansim/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "scansim: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches on the first argument: serve, migrate, version, or a
// one-shot scan / trajectory replay.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(ctx, args[1:], stdout, stderr)
		case "migrate":
			return runMigrate(args[1:], stdout, stderr)
		case "version":
			fmt.Fprintln(stdout, version.String())
			return nil
		}
	}
	return runScan(ctx, args, stdout, stderr)
}

// options holds the flags shared by the scan and serve commands.
type options struct {
	configPath   string
	mapPath      string
	pose         string
	timestamp    float64
	trajectory   string
	realtime     bool
	dbPath       string
	notes        string
	plotPath     string
	listen       string
	rescale      float64
	boundsFilter bool
	logLevel     string
}

func newFlagSet(name string, o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Sensor config file (.json, .yaml, .yml); built-in defaults when empty")
	fs.StringVar(&o.mapPath, "map", "", "Map file (.json, .yaml, .yml)")
	fs.StringVar(&o.pose, "pose", "", "Sensor pose as x,y,heading (radians)")
	fs.Float64Var(&o.rescale, "rescale", 0, "Multiply every map coordinate by this factor (0 leaves the map unchanged)")
	fs.BoolVar(&o.boundsFilter, "bounds-filter", false, "Skip geometry whose bounding box a beam cannot reach")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record scans in")
	fs.StringVar(&o.notes, "notes", "", "Notes stored with the recorded session")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return fs
}

func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("scansim", &o, stderr)
	fs.Float64Var(&o.timestamp, "timestamp", 0, "Timestamp of a one-shot scan")
	fs.StringVar(&o.trajectory, "trajectory", "", "Trajectory file to replay instead of a single pose")
	fs.BoolVar(&o.realtime, "realtime", false, "Pace trajectory replay at the config's scan_interval")
	fs.StringVar(&o.plotPath, "plot", "", "Write a PNG of the final scan to this path")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if err := setupLogger(o.logLevel); err != nil {
		return err
	}

	fsys := fsutil.OSFileSystem{}
	sim, err := loadSimulation(fsys, &o)
	if err != nil {
		return err
	}

	var waypoints []replay.Waypoint
	switch {
	case o.trajectory != "":
		if waypoints, err = replay.LoadTrajectory(fsys, o.trajectory); err != nil {
			return err
		}
	case o.pose != "":
		pose, err := parsePose(o.pose)
		if err != nil {
			return err
		}
		waypoints = []replay.Waypoint{{Timestamp: o.timestamp, Pose: pose}}
	default:
		return errors.New("one of -pose or -trajectory is required")
	}
	first := waypoints[0].Pose
	if err := sim.scanner.LoadScanner(first.Position(), first.Heading); err != nil {
		return err
	}

	player := &replay.Player{
		Scanner:   sim.scanner,
		Waypoints: waypoints,
		Clock:     timeutil.RealClock{},
		Logger:    monitoring.Logger(),
	}
	if o.realtime {
		player.Interval = sim.config.GetScanInterval()
	}

	var sessionID string
	if o.dbPath != "" {
		database, id, err := openSession(o.dbPath, sim, o.notes)
		if err != nil {
			return err
		}
		defer database.Close()
		sessionID = id
		player.Sink = sqlite.NewScanStore(database.DB).Sink(id)
	}

	// A single pose prints the full scan; a trajectory prints a summary.
	var last scanOutput
	if o.trajectory == "" {
		player.Sink = teeSink(player.Sink, func(res scanOutput) { last = res })
	}
	sum, err := player.Run(ctx)
	if err != nil {
		return err
	}

	if o.plotPath != "" {
		if err := monitor.NewScanPlotter().Save(fsys, o.plotPath, sim.geo.Record(), sim.scanner.State()); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if o.trajectory == "" {
		last.SessionID = sessionID
		return enc.Encode(last)
	}
	return enc.Encode(replaySummary{
		SessionID:       sessionID,
		Scans:           sum.Scans,
		OutsideBoundary: sum.OutsideBoundary,
		Advisories:      sum.Advisories,
		Final:           sim.scanner.State(),
	})
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("scansim serve", &o, stderr)
	fs.StringVar(&o.listen, "listen", ":8082", "HTTP listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := setupLogger(o.logLevel); err != nil {
		return err
	}

	sim, err := loadSimulation(fsutil.OSFileSystem{}, &o)
	if err != nil {
		return err
	}

	// Without -pose the sensor starts at the centre of the boundary scope.
	var pose beams.Pose
	if o.pose != "" {
		if pose, err = parsePose(o.pose); err != nil {
			return err
		}
	} else {
		xMin, xMax, yMin, yMax := sim.geo.BoundaryScope()
		pose = beams.Pose{X: (xMin + xMax) / 2, Y: (yMin + yMax) / 2}
	}
	if err := sim.scanner.LoadScanner(pose.Position(), pose.Heading); err != nil {
		return err
	}

	cfg := monitor.WebServerConfig{
		Address: o.listen,
		Scanner: sim.scanner,
		Logger:  monitoring.Logger(),
	}
	if o.dbPath != "" {
		database, id, err := openSession(o.dbPath, sim, o.notes)
		if err != nil {
			return err
		}
		defer database.Close()
		cfg.DB = database
		cfg.SessionID = id
		fmt.Fprintf(stdout, "recording scans to session %s\n", id)
	}
	return monitor.NewWebServer(cfg).Start(ctx)
}

func runMigrate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scansim migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "scansim.db", "Path to the SQLite database file")
	// Flags may appear before, between or after the positional arguments.
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return db.RunMigrateCommand(positional, *dbPath, stdout)
}

// simulation is a scanner with its config and map loaded.
type simulation struct {
	config  *config.SensorConfig
	geo     *geomap.Map
	scanner *scanner.Scanner
}

func loadSimulation(fsys fsutil.FileSystem, o *options) (*simulation, error) {
	cfg := config.DefaultSensorConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadSensorConfig(fsys, o.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	beamCfg, err := cfg.ToBeamConfig()
	if err != nil {
		return nil, err
	}

	if o.mapPath == "" {
		return nil, errors.New("-map is required")
	}
	m, err := geomap.LoadFile(fsys, o.mapPath, geomap.WithRescale(o.rescale))
	if err != nil {
		return nil, err
	}

	sc, err := scanner.New(beamCfg,
		scanner.WithLogger(monitoring.Logger()),
		scanner.WithBoundsFilter(o.boundsFilter))
	if err != nil {
		return nil, err
	}
	if err := sc.LoadMap(m); err != nil {
		return nil, err
	}
	return &simulation{config: cfg, geo: m, scanner: sc}, nil
}

// openSession opens the database, applying migrations, and creates a
// session describing sim.
func openSession(path string, sim *simulation, notes string) (*db.DB, string, error) {
	database, err := db.OpenMigrated(path)
	if err != nil {
		return nil, "", err
	}
	sensorJSON, err := json.Marshal(sim.config)
	if err != nil {
		database.Close()
		return nil, "", fmt.Errorf("marshal sensor config: %w", err)
	}
	mapJSON, err := json.Marshal(sim.geo.Record())
	if err != nil {
		database.Close()
		return nil, "", fmt.Errorf("marshal map: %w", err)
	}
	session := &sqlite.Session{
		FrameID:          sim.config.GetFrameID(),
		SensorConfigJSON: sensorJSON,
		MapJSON:          mapJSON,
		Notes:            notes,
	}
	if err := sqlite.NewSessionStore(database.DB).Create(session); err != nil {
		database.Close()
		return nil, "", err
	}
	monitoring.Logger().Info("recording session",
		zap.String("session_id", session.SessionID),
		zap.String("db", database.Path()))
	return database, session.SessionID, nil
}

func setupLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	monitoring.SetLogger(monitoring.NewProductionLogger(lvl))
	return nil
}

// parsePose parses "x,y,heading".
func parsePose(s string) (beams.Pose, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return beams.Pose{}, fmt.Errorf("%w: %q", beams.ErrInvalidPose, s)
		}
		vals[i] = v
	}
	return beams.PoseFromSlice(vals)
}

type scanOutput struct {
	SessionID  string              `json:"session_id,omitempty"`
	Scan       *beams.Snapshot     `json:"scan"`
	Advisories []advisory.Advisory `json:"advisories"`
	Inside     bool                `json:"inside"`
}

type replaySummary struct {
	SessionID       string          `json:"session_id,omitempty"`
	Scans           int             `json:"scans"`
	OutsideBoundary int             `json:"outside_boundary"`
	Advisories      int             `json:"advisories"`
	Final           *beams.Snapshot `json:"final"`
}

// teeSink forwards each scan to next (when set) and to f.
func teeSink(next replay.Sink, f func(scanOutput)) replay.Sink {
	return replay.SinkFunc(func(ctx context.Context, seq int, res raycast.Result) error {
		f(scanOutput{Scan: res.Snapshot, Advisories: res.Advisories, Inside: res.Inside})
		if next == nil {
			return nil
		}
		return next.RecordScan(ctx, seq, res)
	})
}
