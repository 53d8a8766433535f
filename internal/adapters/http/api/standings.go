// Package api declares HTTP contracts and route registration helpers for
// the read-only ladder surface.
package api

import (
	"context"
	"net/http"
	"strconv"
)

// StandingsDependencies defines the interface for standings reads.
type StandingsDependencies interface {
	Standings(ctx context.Context, n int) ([]Standing, error)
}

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps     StandingsDependencies
	maxLimit int
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, maxLimit int) *StandingsHandler {
	return &StandingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStandings handles GET /standings?limit=N requests. limit is
// optional; omitted means the full table.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "bad_request")
			return
		}
		if parsed > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded")
			return
		}
		n = parsed
	}

	rows, err := h.deps.Standings(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
