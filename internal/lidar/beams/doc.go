// Package beams describes the angular geometry of a planar range sensor and
// holds its latest measurement.
//
// A BeamSet is built once from a Config and never changes. A ScanState owns
// the measurement buffer for one BeamSet and replaces it wholesale: readers
// always receive an immutable Snapshot whose ranges and endpoints have the
// BeamSet's length.
package beams
