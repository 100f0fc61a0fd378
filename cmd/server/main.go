package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/river-flow-service/internal/adapter/geocode"
	"github.com/riverwatch/river-flow-service/internal/adapter/httpapi"
	"github.com/riverwatch/river-flow-service/internal/adapter/nwps"
	"github.com/riverwatch/river-flow-service/internal/adapter/store"
	"github.com/riverwatch/river-flow-service/internal/conditions"
	"github.com/riverwatch/river-flow-service/internal/config"
	"github.com/riverwatch/river-flow-service/internal/observability"
	"github.com/riverwatch/river-flow-service/internal/refresh"
	"github.com/riverwatch/river-flow-service/internal/viewport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := store.Connect(connectCtx, cfg.MongoURI)
	cancelConnect()
	if err != nil {
		logger.Error("mongo connection failed", "error", err)
		os.Exit(1)
	}
	locations := store.NewLocations(mongoClient.Database(cfg.MongoDatabase))

	nwpsClient := nwps.NewClient(cfg.NWPSBaseURL, cfg.ReturnPeriodURL, cfg.ReturnPeriodKey,
		cfg.NWPSTimeout, logger, metrics)
	conds := conditions.New(nwpsClient, logger, metrics, clock)

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder httpapi.Geocoder
	if cfg.MapboxEnabled {
		provider := geocode.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger)
		geocoder = geocode.NewService(provider, logger, metrics, clock,
			cfg.GeocodeCacheTTL, cfg.GeocodeCacheSize)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.GeocodeCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Viewport stream queries need a station index to project against.
	var surface viewport.MapSurface
	if cfg.StationIndexPath != "" {
		index, err := viewport.NewStationIndexFromFile("riverwatch-streams", cfg.StationIndexPath)
		if err != nil {
			logger.Error("station index load failed", "path", cfg.StationIndexPath, "error", err)
			os.Exit(1)
		}
		surface = index
		logger.Info("station index loaded", "path", cfg.StationIndexPath)
	} else {
		logger.Info("station index not configured, stream queries disabled")
	}
	streams := viewport.New(surface, logger, metrics, clock,
		cfg.ViewportCacheTTL, cfg.ViewportCacheSize)

	var mapkit *httpapi.MapKitSigner
	if cfg.MapKitTeamID != "" && cfg.MapKitKeyID != "" && cfg.MapKitPrivateKey != "" {
		mapkit, err = httpapi.NewMapKitSigner(cfg.MapKitTeamID, cfg.MapKitKeyID,
			cfg.MapKitPrivateKey, cfg.MapKitOrigin, clock)
		if err != nil {
			logger.Error("mapkit signer setup failed", "error", err)
			os.Exit(1)
		}
		logger.Info("mapkit token signing enabled")
	} else {
		logger.Info("mapkit token signing disabled")
	}

	refresher := refresh.New(locations, conds, logger, metrics, cfg.RefreshInterval)

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Ready:      refresher,
		Reaches:    nwpsClient,
		Conditions: conds,
		Streams:    streams,
		Geocoder:   geocoder,
		Locations:  locations,
		MapKit:     mapkit,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect error", "error", err)
	}

	logger.Info("shutdown complete")
}
