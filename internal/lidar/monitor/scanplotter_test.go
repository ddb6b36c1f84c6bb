package monitor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/testutil"
)

func testSnapshot() *beams.Snapshot {
	return &beams.Snapshot{
		Timestamp: 3,
		FrameID:   "laser",
		Pose:      beams.Pose{X: 1, Y: 1},
		Angles:    []float64{0, 1},
		Ranges:    []float64{9, 20},
		Endpoints: []r2.Vec{{X: 10, Y: 1}, {X: 11, Y: 18}},
		RangeMax:  20,
	}
}

func TestScanPlotter_Plot(t *testing.T) {
	rec := testutil.NewSquareMap(t).Record()
	p, err := NewScanPlotter().Plot(rec, testSnapshot())
	require.NoError(t, err)

	assert.Contains(t, p.Title.Text, "laser")
	assert.Contains(t, p.Title.Text, "hits 1/2")
	// Axes are square and cover the far endpoint.
	assert.InDelta(t, p.X.Max-p.X.Min, p.Y.Max-p.Y.Min, 1e-9)
	assert.GreaterOrEqual(t, p.Y.Max, 18.0)
	assert.LessOrEqual(t, p.X.Min, 0.0)
}

func TestScanPlotter_PlotErrors(t *testing.T) {
	sp := NewScanPlotter()

	_, err := sp.Plot(testutil.NewSquareMap(t).Record(), nil)
	assert.Error(t, err)

	_, err = sp.Plot(geomap.Record{}, testSnapshot())
	assert.Error(t, err)
}

func TestScanPlotter_WritePNG(t *testing.T) {
	var buf bytes.Buffer
	err := NewScanPlotter().WritePNG(&buf, testutil.NewSquareMap(t).Record(), testSnapshot())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestScanPlotter_Save(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	sp := NewScanPlotter()

	require.NoError(t, sp.Save(fsys, "plots/run1/scan.png", testutil.NewSquareMap(t).Record(), testSnapshot()))
	assert.True(t, fsys.Exists("plots/run1"))

	data, err := fsys.ReadFile("plots/run1/scan.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
