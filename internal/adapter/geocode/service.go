package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/river-flow-service/internal/observability"
)

const (
	defaultCacheTTL     = 24 * time.Hour
	defaultCacheEntries = 1000

	unknownLocation = "Unknown Location"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Components is the administrative context extracted for a coordinate.
type Components struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// NormalizedLocation is the consistent display form produced from
// heterogeneous provider responses.
type NormalizedLocation struct {
	Display     string      `json:"display"`
	Short       string      `json:"short"`
	Components  Components  `json:"components"`
	Coordinates Coordinates `json:"coordinates"`
	CacheKey    string      `json:"cacheKey"`
	GeocodedAt  time.Time   `json:"geocodedAt"`
}

// Result is the reverse-geocoding outcome, flagged when served from cache.
type Result struct {
	Location  NormalizedLocation `json:"location"`
	FromCache bool               `json:"fromCache,omitempty"`
}

// Service wraps a Provider with coordinate validation, a TTL cache keyed by
// rounded coordinates, and display normalization. An in-flight provider call
// is cancelled when a newer coordinate pair supersedes it.
type Service struct {
	provider Provider
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	ttl        time.Duration
	maxEntries int

	mu             sync.Mutex
	cache          map[string]cacheEntry
	order          []string
	cancelInflight context.CancelFunc
}

type cacheEntry struct {
	location NormalizedLocation
	storedAt time.Time
}

// NewService creates the cached geocoding service. Zero ttl and maxEntries
// take the defaults (24h, 1000 entries).
func NewService(provider Provider, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, ttl time.Duration, maxEntries int) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Service{
		provider:   provider,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		cache:      make(map[string]cacheEntry),
	}
}

// ReverseGeocode resolves coordinates to a normalized location. Invalid
// coordinates fail fast with INVALID_COORDINATES and no network call.
func (s *Service) ReverseGeocode(ctx context.Context, coords Coordinates) (Result, error) {
	if coords.Latitude < -90 || coords.Latitude > 90 || coords.Longitude < -180 || coords.Longitude > 180 {
		return Result{}, &Error{
			Code:    CodeInvalidCoordinates,
			Message: fmt.Sprintf("latitude %v, longitude %v out of range", coords.Latitude, coords.Longitude),
		}
	}

	key := fmt.Sprintf("%.4f,%.4f", coords.Latitude, coords.Longitude)
	if loc, ok := s.cacheGet(key); ok {
		s.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return Result{Location: loc, FromCache: true}, nil
	}
	s.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	ctx = s.superseding(ctx)

	start := s.clock.Now()
	info, err := s.provider.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)
	s.metrics.GeocodeAPIDuration.Observe(s.clock.Now().Sub(start).Seconds())
	if err != nil {
		s.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		s.logger.Warn("reverse geocoding failed",
			"lat", coords.Latitude,
			"lon", coords.Longitude,
			"error", err,
		)
		return Result{}, AsError(err)
	}
	if !info.Found {
		s.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	} else {
		s.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}

	loc := normalize(info, coords, key, s.clock.Now())
	s.cachePut(key, loc)
	return Result{Location: loc}, nil
}

// superseding derives a cancellable context for the provider call and
// cancels whatever call was previously in flight.
func (s *Service) superseding(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelInflight != nil {
		s.cancelInflight()
	}
	s.cancelInflight = cancel
	s.mu.Unlock()
	return ctx
}

// normalize builds the display strings from whatever administrative context
// the provider returned, with a fixed fallback priority.
func normalize(info PlaceInfo, coords Coordinates, key string, now time.Time) NormalizedLocation {
	components := Components{
		City:        info.City,
		State:       info.State,
		Country:     info.Country,
		CountryCode: info.CountryCode,
	}
	return NormalizedLocation{
		Display:     FormatDisplay(components),
		Short:       formatShort(components),
		Components:  components,
		Coordinates: coords,
		CacheKey:    key,
		GeocodedAt:  now,
	}
}

// FormatDisplay joins the available components using the priority chain
// city+state+country, city+country, state+country, country, city, and
// finally "Unknown Location" when nothing resolved.
func FormatDisplay(c Components) string {
	switch {
	case c.City != "" && c.State != "" && c.Country != "":
		return strings.Join([]string{c.City, c.State, c.Country}, ", ")
	case c.City != "" && c.Country != "":
		return c.City + ", " + c.Country
	case c.State != "" && c.Country != "":
		return c.State + ", " + c.Country
	case c.Country != "":
		return c.Country
	case c.City != "":
		return c.City
	default:
		return unknownLocation
	}
}

func formatShort(c Components) string {
	switch {
	case c.City != "":
		return c.City
	case c.State != "":
		return c.State
	case c.Country != "":
		return c.Country
	default:
		return unknownLocation
	}
}

func (s *Service) cacheGet(key string) (NormalizedLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return NormalizedLocation{}, false
	}
	if s.clock.Now().Sub(entry.storedAt) >= s.ttl {
		return NormalizedLocation{}, false
	}
	return entry.location, true
}

// cachePut stores a location, evicting the oldest insertion over capacity.
func (s *Service) cachePut(key string, loc NormalizedLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cache[key]; !exists {
		s.order = append(s.order, key)
	}
	s.cache[key] = cacheEntry{location: loc, storedAt: s.clock.Now()}

	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
}
