// Package scanner is the simulated sensor: it ties a BeamSet, a map and a
// ScanState together behind the load-then-scan lifecycle.
package scanner

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/monitoring"
)

var (
	// ErrMapNotLoaded is returned by Scan before LoadMap.
	ErrMapNotLoaded = errors.New("map not loaded")
	// ErrScannerNotLoaded is returned by Scan before LoadScanner.
	ErrScannerNotLoaded = errors.New("scanner not loaded")
)

// Scanner is a simulated planar lidar. All methods are safe for concurrent
// use; scans and map transforms are serialised.
type Scanner struct {
	beams      *beams.BeamSet
	engine     *raycast.Engine
	logger     *zap.Logger
	advisories []advisory.Advisory

	mu    sync.Mutex
	m     *geomap.Map
	state *beams.ScanState
}

// Option configures a Scanner.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	boundsFilter bool
}

// WithLogger sets the logger for configuration and scan advisories.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBoundsFilter enables the bounding box pre-filter in the ray caster.
func WithBoundsFilter(enabled bool) Option {
	return func(o *options) { o.boundsFilter = enabled }
}

// New validates cfg and returns a scanner with neither map nor pose loaded.
func New(cfg beams.Config, opts ...Option) (*Scanner, error) {
	o := options{logger: monitoring.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	bs, advs, err := beams.NewBeamSet(cfg)
	if err != nil {
		return nil, fmt.Errorf("scanner %q: %w", cfg.FrameID, err)
	}
	for _, adv := range advs {
		o.logger.Warn(adv.Message, zap.String("code", string(adv.Code)), zap.String("frame_id", cfg.FrameID))
	}

	return &Scanner{
		beams:      bs,
		engine:     raycast.New(raycast.WithLogger(o.logger), raycast.WithBoundsFilter(o.boundsFilter)),
		logger:     o.logger,
		advisories: advs,
	}, nil
}

// Beams returns the scanner's beam fan.
func (s *Scanner) Beams() *beams.BeamSet { return s.beams }

// ConfigAdvisories returns the advisories raised while validating the
// configuration.
func (s *Scanner) ConfigAdvisories() []advisory.Advisory {
	return append([]advisory.Advisory(nil), s.advisories...)
}

// LoadMap installs m and marks the map ready.
func (s *Scanner) LoadMap(m *geomap.Map) error {
	if m == nil || !m.HasBoundary() {
		return fmt.Errorf("%w: boundary is required", geomap.ErrValidation)
	}
	s.mu.Lock()
	s.m = m
	s.mu.Unlock()
	return nil
}

// LoadMapCoords builds a map from a boundary and bare obstacle vertex lists
// and installs it.
func (s *Scanner) LoadMapCoords(boundary [][]float64, obstacles [][][]float64) error {
	m, err := geomap.FromRaw(boundary, obstacles)
	if err != nil {
		return err
	}
	return s.LoadMap(m)
}

// LoadScanner places the sensor and resets the measurement to the max-range
// baseline at that pose.
func (s *Scanner) LoadScanner(position r2.Vec, heading float64) error {
	pose := beams.Pose{X: position.X, Y: position.Y, Heading: heading}
	if err := pose.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = beams.NewScanState(s.beams, pose)
	s.mu.Unlock()
	return nil
}

// Ready reports whether both a map and a pose have been loaded.
func (s *Scanner) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m != nil && s.state != nil
}

// Scan runs one scan at pose and returns the published snapshot.
func (s *Scanner) Scan(timestamp float64, pose beams.Pose) (raycast.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		return raycast.Result{}, ErrMapNotLoaded
	}
	if s.state == nil {
		return raycast.Result{}, ErrScannerNotLoaded
	}
	return s.engine.Scan(s.state, s.m, timestamp, pose)
}

// ScanSlice is Scan for a pose given as [x, y, heading].
func (s *Scanner) ScanSlice(timestamp float64, pose []float64) (raycast.Result, error) {
	p, err := beams.PoseFromSlice(pose)
	if err != nil {
		return raycast.Result{}, err
	}
	return s.Scan(timestamp, p)
}

// TransformMap applies f to every map vertex. It waits for any in-flight
// scan to finish.
func (s *Scanner) TransformMap(f func(r2.Vec) r2.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return ErrMapNotLoaded
	}
	s.m.TransformCoordinates(f)
	return nil
}

// Map returns the loaded map record, or false before LoadMap.
func (s *Scanner) Map() (geomap.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return geomap.Record{}, false
	}
	return s.m.Record(), true
}

// State returns the latest snapshot, or nil before LoadScanner.
func (s *Scanner) State() *beams.Snapshot {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return nil
	}
	return state.Snapshot()
}

// Position returns the current sensor position.
func (s *Scanner) Position() (r2.Vec, bool) {
	snap := s.State()
	if snap == nil {
		return r2.Vec{}, false
	}
	return snap.Pose.Position(), true
}

// Heading returns the current sensor heading.
func (s *Scanner) Heading() (float64, bool) {
	snap := s.State()
	if snap == nil {
		return 0, false
	}
	return snap.Pose.Heading, true
}
