// Package api serves the relay's internal HTTP surface: health, status,
// start/stop control and prometheus metrics. It is meant for loopback use.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/ingest"
	"github.com/RenatoCabral2022/framerelay/internal/relay"
)

// Controller is the part of the relay the API drives.
type Controller interface {
	Start() error
	Stop()
	Status() relay.Status
}

// Server holds dependencies for the internal API handlers.
type Server struct {
	relay  Controller
	source ingest.Source
	logger *zap.Logger
}

type statusResponse struct {
	Relay  relay.Status   `json:"relay"`
	Source *ingest.Status `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates the API server. source may be nil when no built-in producer runs.
func New(r Controller, source ingest.Source, logger *zap.Logger) *Server {
	return &Server{relay: r, source: source, logger: logger}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/relay/start", s.handleStart)
		r.Post("/relay/stop", s.handleStop)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Relay: s.relay.Status()}
	if s.source != nil {
		st := s.source.Status()
		resp.Source = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.relay.Start(); err != nil {
		s.logger.Error("relay start via API failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.relay.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("internal api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("requestId", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
