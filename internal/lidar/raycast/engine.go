package raycast

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/geometry"
	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/monitoring"
)

// ErrNoBoundary is returned when scanning against a map without a boundary.
var ErrNoBoundary = errors.New("map has no boundary")

// Engine runs scans. It holds no per-scan state and may be shared.
type Engine struct {
	logger       *zap.Logger
	boundsFilter bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for advisories.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBoundsFilter enables the per-shape bounding box pre-filter.
func WithBoundsFilter(enabled bool) Option {
	return func(e *Engine) { e.boundsFilter = enabled }
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: monitoring.Logger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one scan.
type Result struct {
	Snapshot   *beams.Snapshot
	Advisories []advisory.Advisory
	// Inside is false when the sensor was not strictly inside the boundary
	// and no intersection tests ran.
	Inside bool
}

// Scan computes the ranges for pose and publishes them to state with a
// single swap. A pose outside the boundary publishes the max-range baseline.
//
// The baseline is built privately and the result committed with
// ScanState.Publish, which has the effect of InitBeams at pose followed by
// Update with the new buffers, without readers ever seeing the baseline of an
// inside scan.
func (e *Engine) Scan(state *beams.ScanState, m *geomap.Map, timestamp float64, pose beams.Pose) (Result, error) {
	if err := pose.Validate(); err != nil {
		return Result{}, err
	}
	if m == nil || !m.HasBoundary() {
		return Result{}, ErrNoBoundary
	}

	bs := state.Beams()
	ranges, endpoints := bs.Baseline(pose)
	origin := pose.Position()
	log := e.logger.With(zap.String("frame_id", bs.FrameID()), zap.Float64("timestamp", timestamp))

	if !geometry.StrictlyInside(origin, m.Boundary()) {
		adv := advisory.New(advisory.OutsideBoundary,
			"sensor at (%g, %g) is not strictly inside the boundary", origin.X, origin.Y)
		log.Warn(adv.Message, zap.String("code", string(adv.Code)),
			zap.Float64("x", origin.X), zap.Float64("y", origin.Y))
		if err := state.Publish(timestamp, pose, ranges, endpoints); err != nil {
			return Result{}, fmt.Errorf("publish baseline: %w", err)
		}
		return Result{Snapshot: state.Snapshot(), Advisories: []advisory.Advisory{adv}}, nil
	}

	shapes, advs := Candidates(m)
	for _, adv := range advs {
		log.Warn(adv.Message, zap.String("code", string(adv.Code)))
	}

	var boxes []r2.Box
	if e.boundsFilter {
		boxes = make([]r2.Box, len(shapes))
		for i, s := range shapes {
			boxes[i] = s.Bounds()
		}
	}

	rangeMax := bs.RangeMax()
	for i, angle := range bs.Angles() {
		dir := beams.Direction(pose.Heading, angle)
		beam := geometry.Segment{A: origin, B: r2.Add(origin, r2.Scale(rangeMax, dir))}

		d := e.cast(beam, shapes, boxes)
		ranges[i] = d
		endpoints[i] = r2.Add(origin, r2.Scale(d, dir))
	}

	if err := state.Publish(timestamp, pose, ranges, endpoints); err != nil {
		return Result{}, fmt.Errorf("publish scan: %w", err)
	}
	return Result{Snapshot: state.Snapshot(), Advisories: advs, Inside: true}, nil
}

// CastBeam returns the distance from beam.A to the nearest contact with any
// of shapes, within [0, beam length]. A beam that meets nothing returns its
// full length.
func CastBeam(beam geometry.Segment, shapes []geometry.Shape) float64 {
	return (&Engine{}).cast(beam, shapes, nil)
}

func (e *Engine) cast(beam geometry.Segment, shapes []geometry.Shape, boxes []r2.Box) float64 {
	limit := beam.Length()
	best := limit
	var beamBox r2.Box
	if boxes != nil {
		beamBox = beam.Bounds()
	}
	for i, s := range shapes {
		if boxes != nil && !geometry.BoxesOverlap(beamBox, boxes[i]) {
			continue
		}
		if d, ok := s.FirstContact(beam); ok && d < best {
			best = d
		}
	}
	return math.Min(math.Max(best, 0), limit)
}

// Candidates renders m as the shapes a beam is tested against: the boundary
// as a closed curve first, then each obstacle as a solid in id order.
// Invalid obstacles are repaired and reported with a GeometryRepaired
// advisory.
func Candidates(m *geomap.Map) ([]geometry.Shape, []advisory.Advisory) {
	obstacles := m.Obstacles()
	shapes := make([]geometry.Shape, 0, len(obstacles)+1)
	shapes = append(shapes, geometry.NewCurve("boundary", m.Boundary()))

	var advs []advisory.Advisory
	for _, o := range obstacles {
		s := geometry.NewSolid(o.Name, o.Vertices)
		if err := s.Validate(); err != nil {
			s = s.Repair()
			advs = append(advs, advisory.New(advisory.GeometryRepaired,
				"obstacle %d (%s) repaired before intersection: %v", o.ID, o.Name, err))
		}
		shapes = append(shapes, s)
	}
	return shapes, advs
}
