package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Epsilon is the absolute tolerance, in map units, used when deciding whether
// two pieces of geometry touch.
const Epsilon = 1e-9

// Segment is the closed line segment from A to B.
type Segment struct {
	A, B r2.Vec
}

// Vector returns B - A.
func (s Segment) Vector() r2.Vec {
	return r2.Sub(s.B, s.A)
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return r2.Norm(s.Vector())
}

// At returns the point A + t·(B - A).
func (s Segment) At(t float64) r2.Vec {
	return r2.Add(s.A, r2.Scale(t, s.Vector()))
}

// Bounds returns the axis-aligned box enclosing the segment.
func (s Segment) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: math.Min(s.A.X, s.B.X), Y: math.Min(s.A.Y, s.B.Y)},
		Max: r2.Vec{X: math.Max(s.A.X, s.B.X), Y: math.Max(s.A.Y, s.B.Y)},
	}
}

// DistanceTo returns the distance from p to the closest point of s.
func (s Segment) DistanceTo(p r2.Vec) float64 {
	d := s.Vector()
	l2 := r2.Norm2(d)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, s.A))
	}
	t := clamp01(r2.Dot(r2.Sub(p, s.A), d) / l2)
	return r2.Norm(r2.Sub(p, s.At(t)))
}

// Contact returns the smallest parameter t in [0, 1] at which s touches
// other, so that s.At(t) is the contact point nearest to s.A. Collinear
// overlaps report the start of the overlap. ok is false when the segments
// are disjoint.
//
// Solve s.A + t·r = other.A + u·q as a 2x2 linear system; when r×q vanishes
// the segments are parallel and only a collinear overlap can touch.
func (s Segment) Contact(other Segment) (t float64, ok bool) {
	r := s.Vector()
	q := other.Vector()
	w := r2.Sub(other.A, s.A)

	rr := r2.Norm2(r)
	if rr == 0 {
		return 0, other.DistanceTo(s.A) <= Epsilon
	}
	rLen := math.Sqrt(rr)
	qLen := r2.Norm(q)

	denom := r2.Cross(r, q)
	if qLen > 0 && math.Abs(denom) > Epsilon*rLen*qLen {
		t = r2.Cross(w, q) / denom
		u := r2.Cross(w, r) / denom
		tolT := Epsilon / rLen
		tolU := Epsilon / qLen
		if t < -tolT || t > 1+tolT || u < -tolU || u > 1+tolU {
			return 0, false
		}
		return clamp01(t), true
	}

	// Parallel, or other is a single point.
	if math.Abs(r2.Cross(w, r))/rLen > Epsilon {
		return 0, false
	}
	t0 := r2.Dot(w, r) / rr
	t1 := r2.Dot(r2.Sub(other.B, s.A), r) / rr
	lo, hi := math.Min(t0, t1), math.Max(t0, t1)
	tol := Epsilon / rLen
	if hi < -tol || lo > 1+tol {
		return 0, false
	}
	return clamp01(lo), true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
