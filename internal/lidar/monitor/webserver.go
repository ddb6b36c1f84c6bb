package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/scansim/internal/db"
	"github.com/banshee-data/scansim/internal/httputil"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/lidar/scanner"
	"github.com/banshee-data/scansim/internal/lidar/storage/sqlite"
	"github.com/banshee-data/scansim/internal/monitoring"
)

// WebServer serves the scan API and the debug charts for one scanner.
type WebServer struct {
	address   string
	scanner   *scanner.Scanner
	server    *http.Server
	db        *db.DB
	sessions  *sqlite.SessionStore
	scans     *sqlite.ScanStore
	sessionID string
	stats     *ScanStats
	plotter   *ScanPlotter
	logger    *zap.Logger

	// scanMu serialises POST /api/scan so that scans are recorded in the
	// order they are published. last is the most recent result it produced.
	scanMu sync.Mutex
	last   atomic.Pointer[raycast.Result]
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Scanner *scanner.Scanner
	// DB is optional. Without it the session routes answer 503.
	DB *db.DB
	// SessionID, when set with DB, records every scan run through
	// POST /api/scan under that session.
	SessionID string
	Logger    *zap.Logger
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		scanner:   config.Scanner,
		db:        config.DB,
		sessionID: config.SessionID,
		stats:     NewScanStats(),
		plotter:   NewScanPlotter(),
		logger:    config.Logger,
	}
	if ws.logger == nil {
		ws.logger = monitoring.Logger()
	}
	if ws.db != nil {
		ws.sessions = sqlite.NewSessionStore(ws.db.DB)
		ws.scans = sqlite.NewScanStore(ws.db.DB)
	}

	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the server's route table.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	httputil.WriteJSON(w, status, v)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		ws.logger.Info("starting HTTP server", zap.String("address", ws.address))
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	ws.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.logger.Warn("HTTP server shutdown error", zap.Error(err))
		if err := ws.server.Close(); err != nil {
			ws.logger.Warn("HTTP server force close error", zap.Error(err))
		}
	}

	ws.logger.Info("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/scan", ws.handleScan)
	mux.HandleFunc("/api/map", ws.handleMap)
	mux.HandleFunc("GET /api/sessions", ws.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}/scans", ws.handleSessionScans)
	mux.HandleFunc("/debug/scan/xy", ws.handleScanXY)
	mux.HandleFunc("/debug/scan/plot.png", ws.handleScanPlot)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			ws.logger.Warn("failed to attach admin routes", zap.Error(err))
		}
	}
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  ws.scanner.Ready(),
		"stats":  ws.stats.Snapshot(),
	})
}
