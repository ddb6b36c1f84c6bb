package monitor

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

// StatsSnapshot represents a snapshot of current statistics
type StatsSnapshot struct {
	Scans           int64     `json:"scans"`
	OutsideBoundary int64     `json:"outside_boundary"`
	Advisories      int64     `json:"advisories"`
	LastScan        time.Time `json:"last_scan,omitempty"`
	Uptime          string    `json:"uptime"`
}

// ScanStats counts the scans served, with thread-safe operations
type ScanStats struct {
	mu         sync.Mutex
	scans      int64
	outside    int64
	advisories int64
	lastScan   time.Time
	startTime  time.Time
}

// NewScanStats creates a new ScanStats instance
func NewScanStats() *ScanStats {
	return &ScanStats{startTime: time.Now()}
}

// AddScan records one scan result.
func (s *ScanStats) AddScan(res raycast.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	s.advisories += int64(len(res.Advisories))
	if advisory.Has(res.Advisories, advisory.OutsideBoundary) {
		s.outside++
	}
	s.lastScan = time.Now()
}

// Snapshot returns the current counters.
func (s *ScanStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Scans:           s.scans,
		OutsideBoundary: s.outside,
		Advisories:      s.advisories,
		LastScan:        s.lastScan,
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
	}
}

// RangeStats summarises the ranges of one snapshot. Hits counts beams that
// stopped short of range_max.
type RangeStats struct {
	Beams int     `json:"beams"`
	Hits  int     `json:"hits"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// ComputeRangeStats summarises snap. A nil or empty snapshot yields zeros.
func ComputeRangeStats(snap *beams.Snapshot) RangeStats {
	if snap == nil || len(snap.Ranges) == 0 {
		return RangeStats{}
	}
	rs := RangeStats{
		Beams: len(snap.Ranges),
		Min:   floats.Min(snap.Ranges),
		Max:   floats.Max(snap.Ranges),
		Mean:  floats.Sum(snap.Ranges) / float64(len(snap.Ranges)),
	}
	for _, r := range snap.Ranges {
		if r < snap.RangeMax {
			rs.Hits++
		}
	}
	return rs
}
