// Package geomap owns the static scan environment: one boundary ring that the
// sensor must stay strictly inside, and a set of named obstacle polygons keyed
// by integer id.
//
// The map validates vertex records as they are registered and otherwise
// trusts the caller: it does not check that obstacles lie inside the
// boundary, nor that they are disjoint. A Map is not safe for concurrent
// mutation; callers that scan from several goroutines must serialise
// TransformCoordinates against in-flight scans.
package geomap
