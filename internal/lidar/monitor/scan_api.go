package monitor

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/geomap"
	"github.com/banshee-data/scansim/internal/geometry"
	"github.com/banshee-data/scansim/internal/httputil"
	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/scanner"
	"github.com/banshee-data/scansim/internal/lidar/storage/sqlite"
)

// maxScanRequestBytes bounds POST /api/scan bodies.
const maxScanRequestBytes = 1 << 16

type scanRequest struct {
	Timestamp float64   `json:"timestamp"`
	Pose      []float64 `json:"pose"`
}

type scanResponse struct {
	Scan       *beams.Snapshot     `json:"scan"`
	Advisories []advisory.Advisory `json:"advisories"`
	Inside     bool                `json:"inside"`
	Stats      RangeStats          `json:"stats"`
}

type scopeResponse struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

type mapResponse struct {
	geomap.Record
	Scope scopeResponse `json:"scope"`
}

// handleScan returns the latest snapshot on GET and runs a scan on POST.
// POST body: {"timestamp": t, "pose": [x, y, heading]}
func (ws *WebServer) handleScan(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := ws.scanner.State()
		if snap == nil {
			ws.writeJSONError(w, http.StatusNotFound, "scanner not loaded")
			return
		}
		ws.writeJSON(w, http.StatusOK, ws.latestResponse(snap))
	case http.MethodPost:
		ws.runScan(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (ws *WebServer) runScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httputil.DecodeJSON(w, r, maxScanRequestBytes, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ws.scanMu.Lock()
	defer ws.scanMu.Unlock()

	res, err := ws.scanner.ScanSlice(req.Timestamp, req.Pose)
	switch {
	case errors.Is(err, beams.ErrInvalidPose):
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, scanner.ErrMapNotLoaded), errors.Is(err, scanner.ErrScannerNotLoaded):
		ws.writeJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.stats.AddScan(res)
	ws.last.Store(&res)

	if ws.scans != nil && ws.sessionID != "" {
		if err := ws.scans.Append(sqlite.NewScanRecord(ws.sessionID, 0, res)); err != nil {
			ws.logger.Error("record scan", zap.String("session_id", ws.sessionID), zap.Error(err))
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("record scan: %v", err))
			return
		}
	}

	ws.writeJSON(w, http.StatusOK, scanResponse{
		Scan:       res.Snapshot,
		Advisories: res.Advisories,
		Inside:     res.Inside,
		Stats:      ComputeRangeStats(res.Snapshot),
	})
}

// latestResponse describes snap. When snap is the one published by the last
// POST its advisories and containment are reported; otherwise containment is
// derived from the pose and the loaded boundary.
func (ws *WebServer) latestResponse(snap *beams.Snapshot) scanResponse {
	resp := scanResponse{Scan: snap, Stats: ComputeRangeStats(snap)}
	if last := ws.last.Load(); last != nil && last.Snapshot == snap {
		resp.Advisories = last.Advisories
		resp.Inside = last.Inside
		return resp
	}
	if rec, ok := ws.scanner.Map(); ok && len(rec.BoundaryCoords) > 0 {
		boundary := make([]r2.Vec, len(rec.BoundaryCoords))
		for i, c := range rec.BoundaryCoords {
			boundary[i] = r2.Vec{X: c[0], Y: c[1]}
		}
		resp.Inside = geometry.StrictlyInside(snap.Pose.Position(), boundary)
	}
	return resp
}

// handleMap returns the loaded boundary, obstacles and boundary scope.
func (ws *WebServer) handleMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	rec, ok := ws.scanner.Map()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "map not loaded")
		return
	}
	m, err := geomap.FromRecord(rec)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var scope scopeResponse
	scope.XMin, scope.XMax, scope.YMin, scope.YMax = m.BoundaryScope()
	ws.writeJSON(w, http.StatusOK, mapResponse{Record: rec, Scope: scope})
}

// handleSessions lists recorded sessions, newest first.
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if ws.sessions == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	sessions, err := ws.sessions.List()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*sqlite.Session{}
	}
	ws.writeJSON(w, http.StatusOK, sessions)
}

// handleSessionScans returns every scan recorded under a session.
func (ws *WebServer) handleSessionScans(w http.ResponseWriter, r *http.Request) {
	if ws.sessions == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	id := r.PathValue("id")
	if _, err := ws.sessions.Get(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("session %q not found", id))
			return
		}
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records, err := ws.scans.ListBySession(id)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*sqlite.ScanRecord{}
	}
	ws.writeJSON(w, http.StatusOK, records)
}
