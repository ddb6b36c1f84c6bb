package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrEmptyShape is returned for a shape without vertices.
	ErrEmptyShape = errors.New("shape has no vertices")
	// ErrDegenerate is returned for a solid with fewer than three distinct
	// vertices or zero enclosed area.
	ErrDegenerate = errors.New("shape is degenerate")
	// ErrSelfIntersecting is returned for a ring whose non-adjacent edges
	// touch, or whose adjacent edges fold back onto each other.
	ErrSelfIntersecting = errors.New("shape is self-intersecting")
)

// Kind distinguishes how a shape blocks a beam.
type Kind int

const (
	// KindCurve blocks only where a beam touches the closed ring.
	KindCurve Kind = iota + 1
	// KindSolid blocks wherever a beam touches the ring or its interior.
	KindSolid
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCurve:
		return "curve"
	case KindSolid:
		return "solid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Shape is a closed polygonal ring together with its blocking rule. The ring
// is implicitly closed: the last vertex connects back to the first, and the
// closing vertex is never stored twice.
type Shape struct {
	Kind     Kind
	Name     string
	Vertices []r2.Vec

	// Repaired is set on shapes returned by Repair.
	Repaired bool
}

// NewCurve builds a curve from a ring of vertices.
func NewCurve(name string, vertices []r2.Vec) Shape {
	return Shape{Kind: KindCurve, Name: name, Vertices: openRing(vertices)}
}

// NewSolid builds a solid region from a ring of vertices.
func NewSolid(name string, vertices []r2.Vec) Shape {
	return Shape{Kind: KindSolid, Name: name, Vertices: openRing(vertices)}
}

// openRing copies vertices, dropping an explicit closing vertex.
func openRing(vertices []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(vertices))
	copy(out, vertices)
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// Edges returns the edges of the closed ring in vertex order. A single vertex
// yields one zero-length edge so that it still has a touchable extent.
func (s Shape) Edges() []Segment {
	n := len(s.Vertices)
	switch n {
	case 0:
		return nil
	case 1:
		return []Segment{{A: s.Vertices[0], B: s.Vertices[0]}}
	case 2:
		return []Segment{{A: s.Vertices[0], B: s.Vertices[1]}}
	}
	edges := make([]Segment, n)
	for i := 0; i < n; i++ {
		edges[i] = Segment{A: s.Vertices[i], B: s.Vertices[(i+1)%n]}
	}
	return edges
}

// Bounds returns the axis-aligned bounding box of the vertices. The box of an
// empty shape is the zero box.
func (s Shape) Bounds() r2.Box {
	if len(s.Vertices) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: s.Vertices[0], Max: s.Vertices[0]}
	for _, v := range s.Vertices[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
	}
	return b
}

// SignedArea returns the shoelace area of the ring, positive when the
// vertices run counter-clockwise.
func (s Shape) SignedArea() float64 {
	n := len(s.Vertices)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += r2.Cross(s.Vertices[i], s.Vertices[(i+1)%n])
	}
	return sum / 2
}

// Validate reports whether the shape is a well-formed simple ring. Curves
// only need one vertex. Solids must also enclose area without crossing
// themselves.
func (s Shape) Validate() error {
	if len(s.Vertices) == 0 {
		return ErrEmptyShape
	}
	if s.Kind != KindSolid {
		return nil
	}
	ring := Shape{Kind: s.Kind, Vertices: dedupe(s.Vertices)}
	if len(ring.Vertices) < 3 || math.Abs(ring.SignedArea()) <= Epsilon {
		return ErrDegenerate
	}
	if selfIntersects(ring.Edges()) {
		return ErrSelfIntersecting
	}
	return nil
}

// Repair returns a normalised copy of an invalid shape: consecutive duplicate
// vertices are merged and the closing vertex dropped. The blocking rule of a
// solid treats every edge as region boundary, so a self-intersecting ring is
// evaluated as its even-odd closure; degenerate rings keep blocking along the
// vertices and edges that remain. The result is a best-effort stand-in and
// is not guaranteed to pass Validate.
func (s Shape) Repair() Shape {
	return Shape{
		Kind:     s.Kind,
		Name:     s.Name,
		Vertices: dedupe(s.Vertices),
		Repaired: true,
	}
}

// Contains reports whether p lies in the closure of a solid (interior or
// ring). For a curve it reports whether p lies on the ring.
func (s Shape) Contains(p r2.Vec) bool {
	if OnRing(p, s.Vertices) {
		return true
	}
	return s.Kind == KindSolid && evenOdd(p, s.Vertices)
}

// FirstContact returns the distance from beam.A to the nearest point at which
// the beam touches the shape, following the shape's blocking rule. ok is false
// when the beam and the shape are disjoint.
func (s Shape) FirstContact(beam Segment) (distance float64, ok bool) {
	if len(s.Vertices) == 0 {
		return 0, false
	}
	if s.Kind == KindSolid && s.Contains(beam.A) {
		return 0, true
	}

	best := math.Inf(1)
	for _, e := range s.Edges() {
		if t, hit := beam.Contact(e); hit && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best * beam.Length(), true
}

// StrictlyInside reports whether p lies in the interior of the ring formed by
// vertices: inside by the even-odd rule and not on any edge.
func StrictlyInside(p r2.Vec, vertices []r2.Vec) bool {
	if len(vertices) < 3 {
		return false
	}
	return !OnRing(p, vertices) && evenOdd(p, vertices)
}

// OnRing reports whether p lies within Epsilon of an edge of the closed ring.
func OnRing(p r2.Vec, vertices []r2.Vec) bool {
	for _, e := range (Shape{Vertices: vertices}).Edges() {
		if e.DistanceTo(p) <= Epsilon {
			return true
		}
	}
	return false
}

// evenOdd is the crossing-number point-in-polygon test.
func evenOdd(p r2.Vec, vertices []r2.Vec) bool {
	inside := false
	j := len(vertices) - 1
	for i := 0; i < len(vertices); i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

func dedupe(vertices []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, len(vertices))
	for _, v := range vertices {
		if len(out) > 0 && r2.Norm(r2.Sub(v, out[len(out)-1])) <= Epsilon {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && r2.Norm(r2.Sub(out[0], out[len(out)-1])) <= Epsilon {
		out = out[:len(out)-1]
	}
	return out
}

func selfIntersects(edges []Segment) bool {
	n := len(edges)
	for i := 0; i < n; i++ {
		next := edges[(i+1)%n]
		// Adjacent edges that fold back form a zero-width spike.
		if math.Abs(r2.Cross(edges[i].Vector(), next.Vector())) <= Epsilon &&
			r2.Dot(edges[i].Vector(), next.Vector()) < 0 {
			return true
		}
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if _, hit := edges[i].Contact(edges[j]); hit {
				return true
			}
		}
	}
	return false
}
