package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/db"
	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/scanner"
	"github.com/banshee-data/scansim/internal/lidar/storage/sqlite"
	"github.com/banshee-data/scansim/internal/testutil"
)

func newLoadedScanner(t *testing.T) *scanner.Scanner {
	t.Helper()
	sc, err := scanner.New(testutil.BeamConfig(-90, 90, 90, 20), scanner.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, sc.LoadMap(testutil.NewSquareMap(t)))
	require.NoError(t, sc.LoadScanner(r2.Vec{X: 1, Y: 1}, 0))
	return sc
}

func newTestServer(t *testing.T, sc *scanner.Scanner) *WebServer {
	t.Helper()
	return NewWebServer(WebServerConfig{Address: ":0", Scanner: sc, Logger: zap.NewNop()})
}

func serve(ws *WebServer, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	return rr
}

type decodedScan struct {
	Scan struct {
		Timestamp     float64      `json:"timestamp"`
		FrameID       string       `json:"frame_id"`
		Pose          []float64    `json:"pose"`
		Ranges        []float64    `json:"ranges"`
		BeamEndpoints [][2]float64 `json:"beam_endpoints"`
	} `json:"scan"`
	Advisories []advisory.Advisory `json:"advisories"`
	Inside     bool                `json:"inside"`
	Stats      RangeStats          `json:"stats"`
}

func TestNewWebServer(t *testing.T) {
	sc := newLoadedScanner(t)
	ws := newTestServer(t, sc)

	require.NotNil(t, ws)
	assert.Equal(t, sc, ws.scanner)
	assert.Nil(t, ws.sessions, "no stores without a database")
	assert.NotNil(t, ws.stats)
	assert.NotNil(t, ws.Handler())
}

func TestWebServer_Health(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))

	rr := serve(ws, http.MethodGet, "/health", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var body struct {
		Status string        `json:"status"`
		Ready  bool          `json:"ready"`
		Stats  StatsSnapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Ready)
	assert.Zero(t, body.Stats.Scans)
}

func TestWebServer_GetScan(t *testing.T) {
	t.Run("not loaded", func(t *testing.T) {
		sc, err := scanner.New(testutil.BeamConfig(-90, 90, 90, 20), scanner.WithLogger(zap.NewNop()))
		require.NoError(t, err)
		rr := serve(newTestServer(t, sc), http.MethodGet, "/api/scan", "")
		testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
	})

	t.Run("baseline after load", func(t *testing.T) {
		rr := serve(newTestServer(t, newLoadedScanner(t)), http.MethodGet, "/api/scan", "")
		testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var body decodedScan
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, []float64{20, 20, 20}, body.Scan.Ranges)
		assert.Equal(t, "laser", body.Scan.FrameID)
		assert.True(t, body.Inside, "(1, 1) is inside the square boundary")
		assert.Empty(t, body.Advisories)
	})

	t.Run("baseline placed outside", func(t *testing.T) {
		sc := newLoadedScanner(t)
		require.NoError(t, sc.LoadScanner(r2.Vec{X: 15, Y: 5}, 0))
		rr := serve(newTestServer(t, sc), http.MethodGet, "/api/scan", "")
		testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

		var body decodedScan
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.False(t, body.Inside)
	})
}

func TestWebServer_PostScan(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))

	rr := serve(ws, http.MethodPost, "/api/scan", `{"timestamp": 1.5, "pose": [1, 1, 0]}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var body decodedScan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Inside)
	assert.Empty(t, body.Advisories)
	assert.Equal(t, 1.5, body.Scan.Timestamp)
	assert.Equal(t, []float64{1, 1, 0}, body.Scan.Pose)
	require.Len(t, body.Scan.Ranges, 3)
	assert.InDelta(t, 1, body.Scan.Ranges[0], 1e-9)
	assert.InDelta(t, 9, body.Scan.Ranges[1], 1e-9)
	assert.InDelta(t, 9, body.Scan.Ranges[2], 1e-9)
	assert.InDelta(t, 10, body.Scan.BeamEndpoints[1][0], 1e-9)
	assert.Equal(t, 3, body.Stats.Hits)

	// The new snapshot is what GET returns now.
	rr = serve(ws, http.MethodGet, "/api/scan", "")
	var latest decodedScan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.Equal(t, 1.5, latest.Scan.Timestamp)

	assert.EqualValues(t, 1, ws.stats.Snapshot().Scans)
}

func TestWebServer_PostScanOutsideBoundary(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))

	rr := serve(ws, http.MethodPost, "/api/scan", `{"timestamp": 2, "pose": [15, 5, 0]}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var body decodedScan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Inside)
	assert.Equal(t, []float64{20, 20, 20}, body.Scan.Ranges)
	require.Len(t, body.Advisories, 1)
	assert.Equal(t, advisory.OutsideBoundary, body.Advisories[0].Code)
	assert.EqualValues(t, 1, ws.stats.Snapshot().OutsideBoundary)

	// GET reports the same outcome for the published baseline.
	rr = serve(ws, http.MethodGet, "/api/scan", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	var latest decodedScan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.Equal(t, 2.0, latest.Scan.Timestamp)
	assert.False(t, latest.Inside)
	require.Len(t, latest.Advisories, 1)
	assert.Equal(t, advisory.OutsideBoundary, latest.Advisories[0].Code)

	// A later scan from inside clears it.
	rr = serve(ws, http.MethodPost, "/api/scan", `{"timestamp": 3, "pose": [1, 1, 0]}`)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	rr = serve(ws, http.MethodGet, "/api/scan", "")
	latest = decodedScan{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.True(t, latest.Inside)
	assert.Empty(t, latest.Advisories)
}

func TestWebServer_PostScanErrors(t *testing.T) {
	noMap, err := scanner.New(testutil.BeamConfig(-90, 90, 90, 20), scanner.WithLogger(zap.NewNop()))
	require.NoError(t, err)

	tests := []struct {
		name   string
		sc     *scanner.Scanner
		method string
		body   string
		want   int
	}{
		{"short pose", newLoadedScanner(t), http.MethodPost, `{"timestamp": 0, "pose": [1, 1]}`, http.StatusBadRequest},
		{"malformed json", newLoadedScanner(t), http.MethodPost, `{"timestamp":`, http.StatusBadRequest},
		{"unknown field", newLoadedScanner(t), http.MethodPost, `{"pose": [1, 1, 0], "extra": 1}`, http.StatusBadRequest},
		{"map not loaded", noMap, http.MethodPost, `{"timestamp": 0, "pose": [1, 1, 0]}`, http.StatusConflict},
		{"wrong method", newLoadedScanner(t), http.MethodPut, `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(newTestServer(t, tt.sc), tt.method, "/api/scan", tt.body)
			testutil.AssertStatusCode(t, rr.Code, tt.want)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWebServer_Map(t *testing.T) {
	rr := serve(newTestServer(t, newLoadedScanner(t)), http.MethodGet, "/api/map", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var body struct {
		BoundaryCoords [][]float64 `json:"boundary_coords"`
		ObstacleDict   []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"obstacle_dict"`
		Scope scopeResponse `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.BoundaryCoords, 4)
	require.Len(t, body.ObstacleDict, 1)
	assert.Equal(t, scopeResponse{XMin: 0, XMax: 10, YMin: 0, YMax: 10}, body.Scope)

	sc, err := scanner.New(testutil.BeamConfig(-90, 90, 90, 20), scanner.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	rr = serve(newTestServer(t, sc), http.MethodGet, "/api/map", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)

	rr = serve(newTestServer(t, newLoadedScanner(t)), http.MethodPost, "/api/map", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusMethodNotAllowed)
}

func TestWebServer_SessionsWithoutDB(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))

	testutil.AssertStatusCode(t, serve(ws, http.MethodGet, "/api/sessions", "").Code, http.StatusServiceUnavailable)
	testutil.AssertStatusCode(t, serve(ws, http.MethodGet, "/api/sessions/abc/scans", "").Code, http.StatusServiceUnavailable)
}

func TestWebServer_RecordsScansToSession(t *testing.T) {
	database, err := db.OpenMigrated(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	defer database.Close()

	session := &sqlite.Session{FrameID: "laser"}
	require.NoError(t, sqlite.NewSessionStore(database.DB).Create(session))

	ws := NewWebServer(WebServerConfig{
		Address:   ":0",
		Scanner:   newLoadedScanner(t),
		DB:        database,
		SessionID: session.SessionID,
		Logger:    zap.NewNop(),
	})

	for i, body := range []string{
		`{"timestamp": 0, "pose": [1, 1, 0]}`,
		`{"timestamp": 1, "pose": [2, 2, 0.5]}`,
	} {
		rr := serve(ws, http.MethodPost, "/api/scan", body)
		testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
		if rr.Code != http.StatusOK {
			t.Fatalf("scan %d: %s", i, rr.Body.String())
		}
	}

	rr := serve(ws, http.MethodGet, "/api/sessions/"+session.SessionID+"/scans", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	var scans []struct {
		Seq    int       `json:"seq"`
		Pose   []float64 `json:"pose"`
		Ranges []float64 `json:"ranges"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &scans))
	require.Len(t, scans, 2)
	assert.Equal(t, 0, scans[0].Seq)
	assert.Equal(t, 1, scans[1].Seq)
	assert.Equal(t, []float64{2, 2, 0.5}, scans[1].Pose)

	rr = serve(ws, http.MethodGet, "/api/sessions", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	var sessions []sqlite.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, session.SessionID, sessions[0].SessionID)

	rr = serve(ws, http.MethodGet, "/api/sessions/no-such-session/scans", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)

	// Admin routes are mounted alongside the API.
	rr = serve(ws, http.MethodGet, "/debug/tailsql/", "")
	assert.NotEqual(t, http.StatusNotFound, rr.Code)
}

func TestWebServer_ConcurrentPostsRecordEveryScan(t *testing.T) {
	database, err := db.OpenMigrated(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	defer database.Close()

	session := &sqlite.Session{FrameID: "laser"}
	require.NoError(t, sqlite.NewSessionStore(database.DB).Create(session))

	ws := NewWebServer(WebServerConfig{
		Address:   ":0",
		Scanner:   newLoadedScanner(t),
		DB:        database,
		SessionID: session.SessionID,
		Logger:    zap.NewNop(),
	})

	const requests = 64
	codes := make([]int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"timestamp": %d, "pose": [%g, 5, 0]}`, i, 1+float64(i%8))
			codes[i] = serve(ws, http.MethodPost, "/api/scan", body).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}

	records, err := sqlite.NewScanStore(database.DB).ListBySession(session.SessionID)
	require.NoError(t, err)
	require.Len(t, records, requests)
	for i, rec := range records {
		assert.Equal(t, i, rec.Seq)
	}
	assert.EqualValues(t, requests, ws.stats.Snapshot().Scans)
}

func TestWebServer_ScanXY(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))
	serve(ws, http.MethodPost, "/api/scan", `{"timestamp": 0, "pose": [1, 1, 0]}`)

	rr := serve(ws, http.MethodGet, "/debug/scan/xy", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "Simulated scan")
	assert.Contains(t, body, "endpoints")
}

func TestWebServer_ScanPlot(t *testing.T) {
	ws := newTestServer(t, newLoadedScanner(t))
	serve(ws, http.MethodPost, "/api/scan", `{"timestamp": 0, "pose": [1, 1, 0]}`)

	rr := serve(ws, http.MethodGet, "/debug/scan/plot.png", "")
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestWebServer_DebugRoutesNotLoaded(t *testing.T) {
	sc, err := scanner.New(testutil.BeamConfig(-90, 90, 90, 20), scanner.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ws := newTestServer(t, sc)

	for _, path := range []string{"/debug/scan/xy", "/debug/scan/plot.png"} {
		testutil.AssertStatusCode(t, serve(ws, http.MethodGet, path, "").Code, http.StatusNotFound)
	}
}

func TestWebServer_StartStop(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "127.0.0.1:0", Scanner: newLoadedScanner(t), Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
