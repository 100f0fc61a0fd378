// Package httpapi exposes the service over HTTP: reach metadata and
// conditions, return-period thresholds, viewport stream queries, reverse
// geocoding, saved locations, MapKit token minting, and the usual health,
// readiness, and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverwatch/river-flow-service/internal/adapter/geocode"
	"github.com/riverwatch/river-flow-service/internal/adapter/store"
	"github.com/riverwatch/river-flow-service/internal/conditions"
	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/viewport"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReachFetcher serves reach metadata and return-period thresholds.
// *nwps.Client satisfies it.
type ReachFetcher interface {
	Reach(ctx context.Context, reachID domain.ReachID) (domain.RiverReach, error)
	ReturnPeriods(ctx context.Context, reachIDs []domain.ReachID) ([]domain.ReachReturnPeriods, error)
}

// ConditionProvider serves assembled reach conditions. *conditions.Service
// satisfies it.
type ConditionProvider interface {
	Condition(ctx context.Context, reachID domain.ReachID) (conditions.Snapshot, error)
	Cached(reachID domain.ReachID) (conditions.Snapshot, bool)
}

// StreamQuerier answers viewport stream queries. *viewport.Service satisfies
// it.
type StreamQuerier interface {
	Query(ctx context.Context, view viewport.Viewport, opts viewport.QueryOptions) (viewport.QueryResult, error)
}

// Geocoder resolves coordinates to normalized locations. *geocode.Service
// satisfies it.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coords geocode.Coordinates) (geocode.Result, error)
}

// LocationStore persists saved locations. *store.Locations satisfies it.
type LocationStore interface {
	Create(ctx context.Context, loc *store.SavedLocation) error
	ListByDevice(ctx context.Context, deviceID string) ([]store.SavedLocation, error)
	Delete(ctx context.Context, deviceID, id string) error
}

// Deps bundles everything the server routes to. Nil fields disable their
// endpoints with 503 responses.
type Deps struct {
	Ready      ReadinessChecker
	Reaches    ReachFetcher
	Conditions ConditionProvider
	Streams    StreamQuerier
	Geocoder   Geocoder
	Locations  LocationStore
	MapKit     *MapKitSigner
	Logger     *slog.Logger
}

// Server exposes the service API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer builds the router and wraps it in an http.Server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Device-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/reaches/{reachID}", s.handleReach)
		api.Get("/reaches/{reachID}/condition", s.handleCondition)
		api.Get("/return-periods", s.handleReturnPeriods)
		api.Post("/streams/query", s.handleStreamQuery)
		api.Get("/geocode/reverse", s.handleReverseGeocode)
		api.Get("/mapkit-token", s.handleMapKitToken)

		api.Route("/locations", func(lr chi.Router) {
			lr.Get("/", s.handleListLocations)
			lr.Post("/", s.handleCreateLocation)
			lr.Delete("/{id}", s.handleDeleteLocation)
		})
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if err := s.deps.Ready.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// apiError is the error half of the response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"ok": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": apiError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
