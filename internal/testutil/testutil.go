// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the map and sensor fixtures used across the lidar
// packages, plus small assertion helpers for HTTP handler tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/units"
)

// SquareBoundary is the 10×10 boundary with a corner at the origin.
func SquareBoundary() [][]float64 {
	return [][]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
}

// CentredObstacle is the 2×2 obstacle in the middle of SquareBoundary.
func CentredObstacle() [][]float64 {
	return [][]float64{{4, 4}, {6, 4}, {6, 6}, {4, 6}}
}

// NewSquareMap returns SquareBoundary with CentredObstacle registered as
// obstacle 0.
func NewSquareMap(t testing.TB) *geomap.Map {
	t.Helper()
	m, err := geomap.FromRaw(SquareBoundary(), [][][]float64{CentredObstacle()})
	if err != nil {
		t.Fatalf("build square map: %v", err)
	}
	return m
}

// BeamConfig builds a beam configuration from angles in degrees.
func BeamConfig(minDeg, maxDeg, incDeg, rangeMax float64) beams.Config {
	return beams.Config{
		AngleMin:       units.DegToRad(minDeg),
		AngleMax:       units.DegToRad(maxDeg),
		AngleIncrement: units.DegToRad(incDeg),
		RangeMax:       rangeMax,
		FrameID:        "laser",
	}
}

// NewBeamSet builds a BeamSet from angles in degrees and fails the test on a
// configuration error.
func NewBeamSet(t testing.TB, minDeg, maxDeg, incDeg, rangeMax float64) *beams.BeamSet {
	t.Helper()
	b, _, err := beams.NewBeamSet(BeamConfig(minDeg, maxDeg, incDeg, rangeMax))
	if err != nil {
		t.Fatalf("build beam set: %v", err)
	}
	return b
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
