package beams

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidPose is returned for poses that are not three finite numbers.
var ErrInvalidPose = errors.New("invalid pose")

// Pose is a sensor position and heading in radians.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// PoseFromSlice converts an [x, y, heading] tuple.
func PoseFromSlice(v []float64) (Pose, error) {
	if len(v) != 3 {
		return Pose{}, fmt.Errorf("%w: want [x, y, heading], got %d components", ErrInvalidPose, len(v))
	}
	p := Pose{X: v[0], Y: v[1], Heading: v[2]}
	if err := p.Validate(); err != nil {
		return Pose{}, err
	}
	return p, nil
}

// Validate rejects non-finite components.
func (p Pose) Validate() error {
	for i, v := range p.Slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidPose, i, v)
		}
	}
	return nil
}

// Position returns the (x, y) part of the pose.
func (p Pose) Position() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Slice returns the pose as [x, y, heading].
func (p Pose) Slice() []float64 { return []float64{p.X, p.Y, p.Heading} }

// Direction is the unit vector along heading+angle.
func Direction(heading, angle float64) r2.Vec {
	s, c := math.Sincos(heading + angle)
	return r2.Vec{X: c, Y: s}
}
