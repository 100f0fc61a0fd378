package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riverwatch/river-flow-service/internal/adapter/nwps"
	"github.com/riverwatch/river-flow-service/internal/domain"
)

// handleReach proxies upstream reach metadata. Responses are immutable for an
// hour, so intermediaries may cache them.
func (s *Server) handleReach(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reaches == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "reach metadata is not configured")
		return
	}

	reachID := domain.ReachID(chi.URLParam(r, "reachID"))
	if !reachID.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_REACH_ID", "reach id must be 3-15 digits")
		return
	}

	reach, err := s.deps.Reaches.Reach(r.Context(), reachID)
	if err != nil {
		if errors.Is(err, nwps.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "reach not found")
			return
		}
		s.logger.Error("reach metadata fetch failed", "reach_id", reachID, "error", err)
		writeError(w, http.StatusInternalServerError, "UPSTREAM_ERROR", "failed to fetch reach metadata")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeData(w, http.StatusOK, reach)
}

// handleCondition serves the assembled condition for a reach, falling back to
// the last warm snapshot when the upstream fetch fails.
func (s *Server) handleCondition(w http.ResponseWriter, r *http.Request) {
	if s.deps.Conditions == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "conditions are not configured")
		return
	}

	reachID := domain.ReachID(chi.URLParam(r, "reachID"))
	if !reachID.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_REACH_ID", "reach id must be 3-15 digits")
		return
	}

	snap, err := s.deps.Conditions.Condition(r.Context(), reachID)
	if err != nil {
		if errors.Is(err, nwps.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "reach not found")
			return
		}
		if cached, ok := s.deps.Conditions.Cached(reachID); ok {
			s.logger.Warn("serving stale condition snapshot", "reach_id", reachID, "error", err)
			w.Header().Set("X-Stale", "true")
			writeData(w, http.StatusOK, cached)
			return
		}
		s.logger.Error("condition fetch failed", "reach_id", reachID, "error", err)
		writeError(w, http.StatusInternalServerError, "UPSTREAM_ERROR", "failed to fetch reach condition")
		return
	}
	writeData(w, http.StatusOK, snap)
}

// handleReturnPeriods proxies normalized return-period thresholds for a
// comma-separated comids list. Thresholds change on a climatological
// timescale, so the response carries a long shared-cache lifetime.
func (s *Server) handleReturnPeriods(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reaches == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "return periods are not configured")
		return
	}

	raw := r.URL.Query().Get("comids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "MISSING_COMIDS", "comids query parameter is required")
		return
	}

	var ids []domain.ReachID
	for _, part := range strings.Split(raw, ",") {
		id := domain.ReachID(strings.TrimSpace(part))
		if !id.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_REACH_ID", "comids must be 3-15 digit reach ids")
			return
		}
		ids = append(ids, id)
	}

	rows, err := s.deps.Reaches.ReturnPeriods(r.Context(), ids)
	if err != nil {
		s.logger.Error("return period fetch failed", "comids", raw, "error", err)
		writeError(w, http.StatusInternalServerError, "UPSTREAM_ERROR", "failed to fetch return periods")
		return
	}

	w.Header().Set("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=7200")
	writeData(w, http.StatusOK, rows)
}
