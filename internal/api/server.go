// Package api exposes the HTTP control surface: tuning reads and writes,
// service status, Prometheus metrics and the MJPEG preview.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/depthcast/depthcast/internal/logger"
	"github.com/depthcast/depthcast/internal/metrics"
	"github.com/depthcast/depthcast/internal/preview"
	"github.com/depthcast/depthcast/internal/tonemap"
)

// Status is the payload served by /api/status and its websocket feed.
type Status struct {
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Tuning        tonemap.Params `json:"tuning"`
	TuningFile    string         `json:"tuning_file"`
	TuningLoaded  time.Time      `json:"tuning_loaded_at"`
	PreviewActive bool           `json:"preview_active"`
}

// Server is the HTTP API. The tuning store is the single authority for
// tone-mapping parameters; writes go through it so they follow the same
// adoption path as external file edits.
type Server struct {
	store   *tonemap.Store
	preview *preview.MJPEG
	m       *metrics.Metrics
	version string
	started time.Time

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer wires the API around its collaborators. preview may be nil.
func NewServer(store *tonemap.Store, pv *preview.MJPEG, m *metrics.Metrics, version string) *Server {
	return &Server{
		store:   store,
		preview: pv,
		m:       m,
		version: version,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/status/ws", s.handleStatusWS)
	r.HandleFunc("/api/tuning", s.handleGetTuning).Methods(http.MethodGet)
	r.HandleFunc("/api/tuning", s.handlePutTuning).Methods(http.MethodPut)
	r.Handle("/metrics", s.m.Handler()).Methods(http.MethodGet)
	if s.preview != nil {
		r.HandleFunc("/stream", s.preview.StreamHandler()).Methods(http.MethodGet)
	}
	return r
}

// Start serves the API on the given port until Stop is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.WithComponent("api").Info().Int("port", port).Msg("HTTP API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) status() Status {
	return Status{
		Version:       s.version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Tuning:        s.store.Snapshot(),
		TuningFile:    s.store.Path(),
		TuningLoaded:  s.store.LoadedAt(),
		PreviewActive: s.preview != nil && s.preview.Active(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(s.status()); err != nil {
			log.Debug().Err(err).Msg("Status websocket closed")
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleGetTuning(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// tuningRequest mirrors the tuning file keys; pointers distinguish missing
// fields from explicit zeros.
type tuningRequest struct {
	OutputMin   *float64 `json:"infrared_output_value_minimum"`
	OutputMax   *float64 `json:"infrared_output_value_maximum"`
	SourceScale *float64 `json:"infrared_source_scale"`
}

func (s *Server) handlePutTuning(w http.ResponseWriter, r *http.Request) {
	var req tuningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.OutputMin == nil || req.OutputMax == nil || req.SourceScale == nil {
		writeError(w, http.StatusBadRequest, "all of infrared_output_value_minimum, infrared_output_value_maximum and infrared_source_scale are required")
		return
	}
	p := tonemap.Params{
		OutputMin:   *req.OutputMin,
		OutputMax:   *req.OutputMax,
		SourceScale: *req.SourceScale,
	}
	if err := s.store.Write(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.WithComponent("api").Info().
		Float64("min", p.OutputMin).
		Float64("max", p.OutputMax).
		Float64("scale", p.SourceScale).
		Msg("Tuning file updated via API")
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Response write failed")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
