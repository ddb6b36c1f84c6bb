package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/geomap"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleScanXY renders the latest scan as an XY scatter (HTML) using
// go-echarts: beam endpoints, the boundary and obstacle vertices, and the
// sensor. This is a debugging-only endpoint.
func (ws *WebServer) handleScanXY(w http.ResponseWriter, r *http.Request) {
	snap := ws.scanner.State()
	if snap == nil {
		ws.writeJSONError(w, http.StatusNotFound, "scanner not loaded")
		return
	}
	rec, ok := ws.scanner.Map()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "map not loaded")
		return
	}

	boundary := scatterRing(rec.BoundaryCoords)
	var obstacles []opts.ScatterData
	for _, o := range rec.ObstacleDict {
		obstacles = append(obstacles, scatterRing(o.Vertices)...)
	}
	endpoints := make([]opts.ScatterData, 0, len(snap.Endpoints))
	for i, e := range snap.Endpoints {
		endpoints = append(endpoints, opts.ScatterData{Value: []interface{}{e.X, e.Y, snap.Ranges[i]}})
	}
	sensor := []opts.ScatterData{{Value: []interface{}{snap.Pose.X, snap.Pose.Y}}}

	// Square axes around everything plotted.
	lo, hi := scatterExtent(rec, snap.Endpoints)
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if span == 0 {
		span = 1
	}
	pad := span * 0.05
	cx, cy := (lo.X+hi.X)/2, (lo.Y+hi.Y)/2
	half := span/2 + pad

	stats := ComputeRangeStats(snap)
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scan (XY)", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Simulated scan",
			Subtitle: fmt.Sprintf("frame=%s t=%g beams=%d hits=%d", snap.FrameID, snap.Timestamp, stats.Beams, stats.Hits),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Min: cx - half, Max: cx + half, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: cy - half, Max: cy + half, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("boundary", boundary, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("obstacles", obstacles, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("endpoints", endpoints, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("sensor", sensor, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleScanPlot renders the latest scan over the map as a PNG.
func (ws *WebServer) handleScanPlot(w http.ResponseWriter, r *http.Request) {
	snap := ws.scanner.State()
	if snap == nil {
		ws.writeJSONError(w, http.StatusNotFound, "scanner not loaded")
		return
	}
	rec, ok := ws.scanner.Map()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "map not loaded")
		return
	}

	var buf bytes.Buffer
	if err := ws.plotter.WritePNG(&buf, rec, snap); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// scatterRing returns the ring's vertices, closed back to the first.
func scatterRing(coords [][]float64) []opts.ScatterData {
	if len(coords) == 0 {
		return nil
	}
	out := make([]opts.ScatterData, 0, len(coords)+1)
	for _, c := range coords {
		out = append(out, opts.ScatterData{Value: []interface{}{c[0], c[1]}})
	}
	return append(out, opts.ScatterData{Value: []interface{}{coords[0][0], coords[0][1]}})
}

// scatterExtent bounds the boundary, every obstacle and the endpoints.
func scatterExtent(rec geomap.Record, endpoints []r2.Vec) (lo, hi r2.Vec) {
	lo = r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi = r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	grow := func(x, y float64) {
		lo.X, lo.Y = math.Min(lo.X, x), math.Min(lo.Y, y)
		hi.X, hi.Y = math.Max(hi.X, x), math.Max(hi.Y, y)
	}
	for _, c := range rec.BoundaryCoords {
		grow(c[0], c[1])
	}
	for _, o := range rec.ObstacleDict {
		for _, c := range o.Vertices {
			grow(c[0], c[1])
		}
	}
	for _, e := range endpoints {
		grow(e.X, e.Y)
	}
	if math.IsInf(lo.X, 1) {
		return r2.Vec{}, r2.Vec{}
	}
	return lo, hi
}
