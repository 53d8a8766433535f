// Package api declares HTTP contracts and route registration helpers for
// the read-only ladder surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ledomar/sideout/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Standings returns the league table, best rating first.
	Standings(ctx context.Context, n int) ([]types.Standing, error)

	// GetStats returns store counters for monitoring.
	GetStats() map[string]interface{}
}

// Standing mirrors the read shape returned by standings queries.
type Standing = types.Standing

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	standingsHandler *StandingsHandler
	metricsHandler   *MetricsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxStandingsLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		standingsHandler: NewStandingsHandler(deps, maxStandingsLimit),
		metricsHandler:   NewMetricsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.Handle("/metrics", s.metricsHandler.Handler())
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire shape of API errors.
type errorBody struct {
	Error string `json:"error"`
}

// writeError encodes a machine-readable error code with the given status.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}
