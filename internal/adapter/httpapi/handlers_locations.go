package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riverwatch/river-flow-service/internal/adapter/store"
)

// deviceID extracts the caller's device identity from the X-Device-ID header.
func deviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Device-ID"))
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Locations == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "saved locations are not configured")
		return
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "MISSING_DEVICE_ID", "X-Device-ID header is required")
		return
	}

	locs, err := s.deps.Locations.ListByDevice(r.Context(), device)
	if err != nil {
		s.logger.Error("list saved locations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to list saved locations")
		return
	}
	if locs == nil {
		locs = []store.SavedLocation{}
	}
	writeData(w, http.StatusOK, locs)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Locations == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "saved locations are not configured")
		return
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "MISSING_DEVICE_ID", "X-Device-ID header is required")
		return
	}

	var loc store.SavedLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "request body must be valid JSON")
		return
	}
	if !loc.ReachID.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_REACH_ID", "reachId must be 3-15 digits")
		return
	}
	loc.DeviceID = device

	if err := s.deps.Locations.Create(r.Context(), &loc); err != nil {
		s.logger.Error("create saved location failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to save location")
		return
	}
	writeData(w, http.StatusCreated, loc)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Locations == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "saved locations are not configured")
		return
	}
	device := deviceID(r)
	if device == "" {
		writeError(w, http.StatusBadRequest, "MISSING_DEVICE_ID", "X-Device-ID header is required")
		return
	}

	if err := s.deps.Locations.Delete(r.Context(), device, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "saved location not found")
			return
		}
		s.logger.Error("delete saved location failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to delete saved location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
