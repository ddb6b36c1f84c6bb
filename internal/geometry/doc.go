// Package geometry holds the planar primitives used by the scan simulator.
//
// Responsibilities: segments, closed polygonal rings tagged as either a
// Curve (only the ring blocks) or a Solid (ring and interior block), ring
// validity checks, best-effort repair, and first-contact queries of a beam
// segment against a shape.
//
// All vectors are gonum spatial/r2 values. Tolerances are absolute and
// expressed in map units (see Epsilon).
package geometry
