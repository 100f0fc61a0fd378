package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	MongoURI      string
	MongoDatabase string

	// Upstream forecast and return-period services.
	NWPSBaseURL     string
	NWPSTimeout     time.Duration
	ReturnPeriodURL string
	ReturnPeriodKey string

	// Mapbox reverse geocoding.
	MapboxToken      string
	MapboxEnabled    bool
	MapboxTimeout    time.Duration
	GeocodeCacheTTL  time.Duration
	GeocodeCacheSize int

	// Apple MapKit JS token signing.
	MapKitTeamID     string
	MapKitKeyID      string
	MapKitPrivateKey string
	MapKitOrigin     string

	RefreshInterval time.Duration

	// Viewport stream queries.
	StationIndexPath  string
	ViewportCacheTTL  time.Duration
	ViewportCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	nwpsTimeout, err := parseDuration("NWPS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocodeTTL, err := parseDuration("GEOCODE_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	viewportTTL, err := parseDuration("VIEWPORT_CACHE_TTL", "30s")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MongoURI:      envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envOrDefault("MONGO_DB", "riverwatch"),

		NWPSBaseURL:     envOrDefault("NWPS_BASE_URL", "https://api.water.noaa.gov/nwps/v1"),
		NWPSTimeout:     nwpsTimeout,
		ReturnPeriodURL: os.Getenv("RETURN_PERIOD_URL"),
		ReturnPeriodKey: os.Getenv("RETURN_PERIOD_KEY"),

		MapboxToken:      mapboxToken,
		MapboxEnabled:    mapboxEnabled,
		MapboxTimeout:    mapboxTimeout,
		GeocodeCacheTTL:  geocodeTTL,
		GeocodeCacheSize: parseCount("GEOCODE_CACHE_SIZE", 1000),

		MapKitTeamID:     os.Getenv("MAPKIT_TEAM_ID"),
		MapKitKeyID:      os.Getenv("MAPKIT_KEY_ID"),
		MapKitPrivateKey: os.Getenv("MAPKIT_PRIVATE_KEY"),
		MapKitOrigin:     os.Getenv("MAPKIT_ORIGIN"),

		RefreshInterval: refreshInterval,

		StationIndexPath:  os.Getenv("STATION_INDEX_PATH"),
		ViewportCacheTTL:  viewportTTL,
		ViewportCacheSize: parseCount("VIEWPORT_CACHE_SIZE", 50),
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if cfg.NWPSBaseURL == "" {
		return nil, errors.New("NWPS_BASE_URL is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCount(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
