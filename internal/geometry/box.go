package geometry

import "gonum.org/v1/gonum/spatial/r2"

// BoxesOverlap reports whether two axis-aligned boxes share at least one
// point once both are grown by Epsilon.
func BoxesOverlap(a, b r2.Box) bool {
	const margin = 2 * Epsilon
	return a.Min.X <= b.Max.X+margin && b.Min.X <= a.Max.X+margin &&
		a.Min.Y <= b.Max.Y+margin && b.Min.Y <= a.Max.Y+margin
}
