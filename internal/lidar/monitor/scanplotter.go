package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/lidar/beams"
)

// ScanPlotter draws a scan over its map: the boundary as a closed line,
// obstacles as filled polygons, one ray per beam and the sensor position.
type ScanPlotter struct {
	Width  vg.Length
	Height vg.Length
}

// NewScanPlotter returns a plotter producing 8x8 inch images.
func NewScanPlotter() *ScanPlotter {
	return &ScanPlotter{Width: 8 * vg.Inch, Height: 8 * vg.Inch}
}

var (
	boundaryColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	obstacleColor = color.RGBA{R: 120, G: 120, B: 120, A: 160}
	beamColor     = color.RGBA{R: 230, G: 80, B: 40, A: 120}
	hitColor      = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	sensorColor   = color.RGBA{R: 30, G: 90, B: 200, A: 255}
)

// Plot builds the plot for snap drawn over rec.
func (sp *ScanPlotter) Plot(rec geomap.Record, snap *beams.Snapshot) (*plot.Plot, error) {
	if snap == nil {
		return nil, fmt.Errorf("no scan to plot")
	}
	if len(rec.BoundaryCoords) == 0 {
		return nil, fmt.Errorf("map has no boundary")
	}

	stats := ComputeRangeStats(snap)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s t=%g  hits %d/%d  range %.2f..%.2f",
		frameLabel(snap.FrameID), snap.Timestamp, stats.Hits, stats.Beams, stats.Min, stats.Max)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	boundary, err := plotter.NewLine(closedRing(rec.BoundaryCoords))
	if err != nil {
		return nil, fmt.Errorf("boundary: %w", err)
	}
	boundary.Color = boundaryColor
	boundary.Width = vg.Points(1.5)
	p.Add(boundary)
	p.Legend.Add("boundary", boundary)

	for i, o := range rec.ObstacleDict {
		if len(o.Vertices) == 0 {
			continue
		}
		poly, err := plotter.NewPolygon(ringXYs(o.Vertices))
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", o.ID, err)
		}
		poly.Color = obstacleColor
		poly.LineStyle.Color = boundaryColor
		p.Add(poly)
		if i == 0 {
			p.Legend.Add("obstacle", poly)
		}
	}

	if len(snap.Endpoints) > 0 {
		// Sensor, endpoint, sensor, ... draws the fan as one line.
		fan := make(plotter.XYs, 0, 2*len(snap.Endpoints))
		hits := make(plotter.XYs, 0, len(snap.Endpoints))
		for i, e := range snap.Endpoints {
			fan = append(fan, plotter.XY{X: snap.Pose.X, Y: snap.Pose.Y}, plotter.XY{X: e.X, Y: e.Y})
			if snap.Ranges[i] < snap.RangeMax {
				hits = append(hits, plotter.XY{X: e.X, Y: e.Y})
			}
		}
		rays, err := plotter.NewLine(fan)
		if err != nil {
			return nil, fmt.Errorf("beams: %w", err)
		}
		rays.Color = beamColor
		rays.Width = vg.Points(0.5)
		p.Add(rays)
		p.Legend.Add("beams", rays)

		if len(hits) > 0 {
			sc, err := plotter.NewScatter(hits)
			if err != nil {
				return nil, fmt.Errorf("hits: %w", err)
			}
			sc.GlyphStyle.Color = hitColor
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(2)
			p.Add(sc)
			p.Legend.Add("hits", sc)
		}
	}

	sensor, err := plotter.NewScatter(plotter.XYs{{X: snap.Pose.X, Y: snap.Pose.Y}})
	if err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}
	sensor.GlyphStyle.Color = sensorColor
	sensor.GlyphStyle.Shape = draw.TriangleGlyph{}
	sensor.GlyphStyle.Radius = vg.Points(4)
	p.Add(sensor)
	p.Legend.Add("sensor", sensor)

	squareAxes(p)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders the plot as PNG to w.
func (sp *ScanPlotter) WritePNG(w io.Writer, rec geomap.Record, snap *beams.Snapshot) error {
	p, err := sp.Plot(rec, snap)
	if err != nil {
		return err
	}
	c := vgimg.PngCanvas{Canvas: vgimg.New(sp.Width, sp.Height)}
	p.Draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// Save writes the PNG to path on fsys, creating parent directories.
func (sp *ScanPlotter) Save(fsys fsutil.FileSystem, path string, rec geomap.Record, snap *beams.Snapshot) (err error) {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return sp.WritePNG(f, rec, snap)
}

// squareAxes widens the shorter axis so one unit has the same length on
// both, keeping square images undistorted.
func squareAxes(p *plot.Plot) {
	w, h := p.X.Max-p.X.Min, p.Y.Max-p.Y.Min
	span := math.Max(w, h) * 1.05
	if span == 0 {
		span = 1
	}
	cx, cy := (p.X.Min+p.X.Max)/2, (p.Y.Min+p.Y.Max)/2
	p.X.Min, p.X.Max = cx-span/2, cx+span/2
	p.Y.Min, p.Y.Max = cy-span/2, cy+span/2
}

func ringXYs(coords [][]float64) plotter.XYs {
	xys := make(plotter.XYs, len(coords))
	for i, c := range coords {
		xys[i] = plotter.XY{X: c[0], Y: c[1]}
	}
	return xys
}

func closedRing(coords [][]float64) plotter.XYs {
	xys := ringXYs(coords)
	return append(xys, xys[0])
}

func frameLabel(frameID string) string {
	if frameID == "" {
		return "scan"
	}
	return frameID
}
