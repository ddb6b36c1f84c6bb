package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
)

func TestScanStats(t *testing.T) {
	stats := NewScanStats()
	assert.Zero(t, stats.Snapshot().Scans)
	assert.True(t, stats.Snapshot().LastScan.IsZero())

	stats.AddScan(raycast.Result{Inside: true})
	stats.AddScan(raycast.Result{Advisories: []advisory.Advisory{
		advisory.New(advisory.OutsideBoundary, "outside"),
	}})

	snap := stats.Snapshot()
	assert.EqualValues(t, 2, snap.Scans)
	assert.EqualValues(t, 1, snap.OutsideBoundary)
	assert.EqualValues(t, 1, snap.Advisories)
	assert.False(t, snap.LastScan.IsZero())
}

func TestComputeRangeStats(t *testing.T) {
	assert.Equal(t, RangeStats{}, ComputeRangeStats(nil))

	rs := ComputeRangeStats(testSnapshot())
	assert.Equal(t, 2, rs.Beams)
	assert.Equal(t, 1, rs.Hits)
	assert.Equal(t, 9.0, rs.Min)
	assert.Equal(t, 20.0, rs.Max)
	assert.InDelta(t, 14.5, rs.Mean, 1e-12)
}
