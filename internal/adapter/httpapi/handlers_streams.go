package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/riverwatch/river-flow-service/internal/adapter/geocode"
	"github.com/riverwatch/river-flow-service/internal/viewport"
)

// streamQueryReq is the POST body for a viewport stream query.
type streamQueryReq struct {
	Viewport viewport.Viewport     `json:"viewport"`
	Options  viewport.QueryOptions `json:"options"`
}

func (s *Server) handleStreamQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Streams == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "stream queries are not configured")
		return
	}

	var req streamQueryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "request body must be valid JSON")
		return
	}
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_VIEWPORT", "viewport width and height must be positive")
		return
	}

	result, err := s.deps.Streams.Query(r.Context(), req.Viewport, req.Options)
	if err != nil {
		if errors.Is(err, viewport.ErrSurfaceNotReady) {
			writeError(w, http.StatusServiceUnavailable, "SURFACE_NOT_READY", "map surface is not initialized")
			return
		}
		s.logger.Error("stream query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "stream query failed")
		return
	}
	writeData(w, http.StatusOK, result)
}

// handleReverseGeocode resolves lat/lon query parameters to a normalized
// location. Geocoding error codes map onto HTTP statuses.
func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if s.deps.Geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "geocoding is not configured")
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "INVALID_COORDINATES", "lat and lon query parameters are required numbers")
		return
	}

	result, err := s.deps.Geocoder.ReverseGeocode(r.Context(), geocode.Coordinates{Latitude: lat, Longitude: lon})
	if err != nil {
		typed := geocode.AsError(err)
		switch typed.Code {
		case geocode.CodeInvalidCoordinates:
			writeError(w, http.StatusBadRequest, string(typed.Code), typed.Message)
		case geocode.CodeRateLimited:
			writeError(w, http.StatusTooManyRequests, string(typed.Code), typed.Message)
		default:
			s.logger.Error("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
			writeError(w, http.StatusBadGateway, string(typed.Code), "reverse geocoding failed")
		}
		return
	}
	writeData(w, http.StatusOK, result)
}
