package beams

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/units"
)

// ErrInvalidConfig is wrapped by every sensor configuration error.
var ErrInvalidConfig = errors.New("invalid beam configuration")

// Config is the angular fan and range limits of a sensor. Angles are in
// radians relative to the sensor heading.
type Config struct {
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	RangeMin       float64
	RangeMax       float64
	FrameID        string
}

// BeamSet is the immutable beam fan derived from a Config.
type BeamSet struct {
	cfg    Config
	angles []float64
}

// NewBeamSet validates cfg and derives the beam angles. A sensor whose fan
// does not strictly bracket angle 0 is accepted with a ForwardNotBracketed
// advisory.
func NewBeamSet(cfg Config) (*BeamSet, []advisory.Advisory, error) {
	fields := []struct {
		name string
		v    float64
	}{
		{"angle_min", cfg.AngleMin},
		{"angle_max", cfg.AngleMax},
		{"angle_increment", cfg.AngleIncrement},
		{"range_min", cfg.RangeMin},
		{"range_max", cfg.RangeMax},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return nil, nil, fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if cfg.AngleMin > cfg.AngleMax {
		return nil, nil, fmt.Errorf("%w: angle_min (%g) must not exceed angle_max (%g)",
			ErrInvalidConfig, cfg.AngleMin, cfg.AngleMax)
	}
	span := cfg.AngleMax - cfg.AngleMin
	if cfg.AngleIncrement <= 0 || cfg.AngleIncrement > span {
		return nil, nil, fmt.Errorf("%w: angle_increment (%g) must be in (0, %g]",
			ErrInvalidConfig, cfg.AngleIncrement, span)
	}
	if cfg.RangeMin < 0 {
		return nil, nil, fmt.Errorf("%w: range_min (%g) must be non-negative", ErrInvalidConfig, cfg.RangeMin)
	}
	if cfg.RangeMax <= cfg.RangeMin {
		return nil, nil, fmt.Errorf("%w: range_max (%g) must exceed range_min (%g)",
			ErrInvalidConfig, cfg.RangeMax, cfg.RangeMin)
	}

	var advs []advisory.Advisory
	if cfg.AngleMin >= 0 || cfg.AngleMax <= 0 {
		advs = append(advs, advisory.New(advisory.ForwardNotBracketed,
			"angle 0 is not strictly inside [%g, %g]; the sensor does not face forward",
			cfg.AngleMin, cfg.AngleMax))
	}

	n := int(math.Floor(span/cfg.AngleIncrement+0.5)) + 1
	angles := make([]float64, n)
	for i := range angles {
		angles[i] = cfg.AngleMin + float64(i)*cfg.AngleIncrement
	}
	return &BeamSet{cfg: cfg, angles: angles}, advs, nil
}

// Config returns the configuration the set was built from.
func (b *BeamSet) Config() Config { return b.cfg }

// Len is the number of beams.
func (b *BeamSet) Len() int { return len(b.angles) }

// Angles returns a copy of the beam angles in radians, ascending.
func (b *BeamSet) Angles() []float64 {
	return append([]float64(nil), b.angles...)
}

// AnglesDeg returns the beam angles in degrees rounded to 4 decimals.
func (b *BeamSet) AnglesDeg() []float64 {
	out := make([]float64, len(b.angles))
	for i, a := range b.angles {
		out[i] = units.RoundDeg(a)
	}
	return out
}

// RangeMax is the maximum measurable range.
func (b *BeamSet) RangeMax() float64 { return b.cfg.RangeMax }

// RangeMin is the configured minimum range.
func (b *BeamSet) RangeMin() float64 { return b.cfg.RangeMin }

// FrameID is the opaque sensor frame label.
func (b *BeamSet) FrameID() string { return b.cfg.FrameID }
