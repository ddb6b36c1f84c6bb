package beams

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrLengthMismatch is returned when a buffer does not have one entry per beam.
var ErrLengthMismatch = errors.New("buffer length does not match beam count")

// Snapshot is one complete, immutable measurement. Callers must not modify
// the slices.
type Snapshot struct {
	Timestamp float64
	FrameID   string
	Pose      Pose
	Angles    []float64
	Ranges    []float64
	Endpoints []r2.Vec
	RangeMin  float64
	RangeMax  float64
}

type snapshotJSON struct {
	Timestamp     float64      `json:"timestamp"`
	FrameID       string       `json:"frame_id"`
	Pose          []float64    `json:"pose"`
	Angles        []float64    `json:"angles"`
	Ranges        []float64    `json:"ranges"`
	BeamEndpoints [][2]float64 `json:"beam_endpoints"`
	RangeMin      float64      `json:"range_min"`
	RangeMax      float64      `json:"range_max"`
}

// MarshalJSON encodes the pose as [x, y, heading] and endpoints as [x, y]
// pairs.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Timestamp:     s.Timestamp,
		FrameID:       s.FrameID,
		Pose:          s.Pose.Slice(),
		Angles:        s.Angles,
		Ranges:        s.Ranges,
		BeamEndpoints: make([][2]float64, len(s.Endpoints)),
		RangeMin:      s.RangeMin,
		RangeMax:      s.RangeMax,
	}
	for i, e := range s.Endpoints {
		out.BeamEndpoints[i] = [2]float64{e.X, e.Y}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	pose, err := PoseFromSlice(in.Pose)
	if err != nil {
		return err
	}
	*s = Snapshot{
		Timestamp: in.Timestamp,
		FrameID:   in.FrameID,
		Pose:      pose,
		Angles:    in.Angles,
		Ranges:    in.Ranges,
		Endpoints: make([]r2.Vec, len(in.BeamEndpoints)),
		RangeMin:  in.RangeMin,
		RangeMax:  in.RangeMax,
	}
	for i, e := range in.BeamEndpoints {
		s.Endpoints[i] = r2.Vec{X: e[0], Y: e[1]}
	}
	return nil
}

// ScanState holds the latest Snapshot for one BeamSet. Writers publish a new
// snapshot with a single atomic swap, so concurrent readers never observe a
// partially written buffer. Concurrent writers must be serialised by the
// caller.
type ScanState struct {
	beams   *BeamSet
	current atomic.Pointer[Snapshot]
}

// NewScanState places the sensor at pose with a max-range baseline.
func NewScanState(b *BeamSet, pose Pose) *ScanState {
	s := &ScanState{beams: b}
	s.current.Store(b.baseline(0, pose))
	return s
}

// Beams returns the BeamSet the state was built for.
func (s *ScanState) Beams() *BeamSet { return s.beams }

// Snapshot returns the latest published measurement.
func (s *ScanState) Snapshot() *Snapshot { return s.current.Load() }

// InitBeams resets every beam to range_max from the given position and
// heading. The timestamp is kept.
func (s *ScanState) InitBeams(position r2.Vec, heading float64) {
	prev := s.current.Load()
	pose := Pose{X: position.X, Y: position.Y, Heading: heading}
	s.current.Store(s.beams.baseline(prev.Timestamp, pose))
}

// Update replaces the timestamp, ranges and endpoints together. The pose is
// kept.
func (s *ScanState) Update(timestamp float64, ranges []float64, endpoints []r2.Vec) error {
	return s.Publish(timestamp, s.current.Load().Pose, ranges, endpoints)
}

// Publish replaces the whole measurement, pose included, in one swap. The
// slices are copied. It is InitBeams followed by Update as one step.
func (s *ScanState) Publish(timestamp float64, pose Pose, ranges []float64, endpoints []r2.Vec) error {
	n := s.beams.Len()
	if len(ranges) != n {
		return fmt.Errorf("%w: ranges has %d entries, want %d", ErrLengthMismatch, len(ranges), n)
	}
	if len(endpoints) != n {
		return fmt.Errorf("%w: endpoints has %d entries, want %d", ErrLengthMismatch, len(endpoints), n)
	}
	snap := s.beams.newSnapshot(timestamp, pose)
	snap.Ranges = append([]float64(nil), ranges...)
	snap.Endpoints = append([]r2.Vec(nil), endpoints...)
	s.current.Store(snap)
	return nil
}

// Baseline returns the max-range ranges and endpoints for pose.
func (b *BeamSet) Baseline(pose Pose) ([]float64, []r2.Vec) {
	snap := b.baseline(0, pose)
	return snap.Ranges, snap.Endpoints
}

func (b *BeamSet) baseline(timestamp float64, pose Pose) *Snapshot {
	snap := b.newSnapshot(timestamp, pose)
	snap.Ranges = make([]float64, len(b.angles))
	snap.Endpoints = make([]r2.Vec, len(b.angles))
	origin := pose.Position()
	for i, a := range b.angles {
		snap.Ranges[i] = b.cfg.RangeMax
		snap.Endpoints[i] = r2.Add(origin, r2.Scale(b.cfg.RangeMax, Direction(pose.Heading, a)))
	}
	return snap
}

func (b *BeamSet) newSnapshot(timestamp float64, pose Pose) *Snapshot {
	return &Snapshot{
		Timestamp: timestamp,
		FrameID:   b.cfg.FrameID,
		Pose:      pose,
		Angles:    append([]float64(nil), b.angles...),
		RangeMin:  b.cfg.RangeMin,
		RangeMax:  b.cfg.RangeMax,
	}
}
