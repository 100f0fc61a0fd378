package viewport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

// ErrSurfaceNotReady is the only error Query returns: the map surface has
// not finished initializing. Every other failure degrades to warnings.
var ErrSurfaceNotReady = errors.New("map surface is not initialized")

const (
	defaultCacheTTL     = 30 * time.Second
	defaultCacheEntries = 50

	cachedResultsWarning = "used cached results"
)

// QueryOptions narrow and shape a viewport query. The zero value asks for
// every visible stream, deduplicated.
type QueryOptions struct {
	// AllowReachIDs restricts results to the given reaches when non-empty.
	AllowReachIDs []domain.ReachID `json:"allowReachIds,omitempty"`
	// KeepDuplicates disables the default dedupe-by-station-id pass.
	KeepDuplicates bool `json:"keepDuplicates,omitempty"`
	// MaxResults truncates the sorted result list when positive.
	MaxResults int `json:"maxResults,omitempty"`
	// LayerIDs overrides the surface's stream layer set when non-empty.
	LayerIDs []string `json:"layerIds,omitempty"`
}

// QueryResult is the envelope a query produces. Warnings carry every
// recovered sub-failure; they never abort the query.
type QueryResult struct {
	Streams   []domain.VisibleStream `json:"streams"`
	Warnings  []string               `json:"warnings,omitempty"`
	Strategy  string                 `json:"strategy,omitempty"`
	FromCache bool                   `json:"fromCache,omitempty"`
}

// Service discovers candidate river reaches under the current viewport by
// querying rendered map features, with a layered fallback chain and a short
// TTL cache keyed by quantized viewport state.
type Service struct {
	surface MapSurface
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	ttl        time.Duration
	maxEntries int

	mu    sync.Mutex
	cache map[string]cacheEntry
	order []string // insertion order, oldest first
}

type cacheEntry struct {
	result   QueryResult
	storedAt time.Time
}

// New creates a viewport query service. Zero ttl and maxEntries take the
// defaults (30s, 50 entries).
func New(surface MapSurface, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, ttl time.Duration, maxEntries int) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Service{
		surface:    surface,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		cache:      make(map[string]cacheEntry),
	}
}

// Query finds the streams visible in the viewport. It only fails when the
// surface is uninitialized; strategy and per-feature failures surface as
// warnings on the result. Concurrent queries for the same key are not
// coalesced: both may miss the cache, and the last writer wins.
func (s *Service) Query(ctx context.Context, view Viewport, opts QueryOptions) (QueryResult, error) {
	if s.surface == nil || !s.surface.Ready() {
		return QueryResult{}, ErrSurfaceNotReady
	}

	key := cacheKey(view, opts)
	if cached, ok := s.cacheGet(key); ok {
		s.metrics.ViewportCache.WithLabelValues("hit").Inc()
		cached.FromCache = true
		// Copy before annotating so the stored entry's warnings stay intact.
		warnings := make([]string, 0, len(cached.Warnings)+1)
		warnings = append(warnings, cached.Warnings...)
		cached.Warnings = append(warnings, cachedResultsWarning)
		return cached, nil
	}
	s.metrics.ViewportCache.WithLabelValues("miss").Inc()

	layers := opts.LayerIDs
	if len(layers) == 0 {
		layers = s.surface.StreamLayerIDs()
	}

	var warnings []string
	var features []Feature
	var winner string

	for _, strat := range strategyChain {
		collected, stratWarnings := s.runStrategy(ctx, strat, view, layers)
		warnings = append(warnings, stratWarnings...)
		if len(collected) > 0 {
			features = collected
			winner = strat.name
			s.metrics.ViewportQueries.WithLabelValues(strat.name, "success").Inc()
			break
		}
		s.metrics.ViewportQueries.WithLabelValues(strat.name, "empty").Inc()
		warnings = append(warnings, fmt.Sprintf("%s strategy returned no features", strat.name))
	}

	streams := s.mapFeatures(features)
	streams = postProcess(streams, opts)

	result := QueryResult{Streams: streams, Warnings: warnings, Strategy: winner}
	s.cachePut(key, result)
	return result, nil
}

// runStrategy queries every rectangle of a strategy. For partial strategies
// a failing rectangle is skipped with a warning; otherwise the first failure
// abandons the strategy.
func (s *Service) runStrategy(ctx context.Context, strat strategy, view Viewport, layers []string) ([]Feature, []string) {
	var features []Feature
	var warnings []string

	for _, rect := range strat.rects(view.Width, view.Height) {
		found, err := s.surface.QueryRenderedFeatures(ctx, view, rect, layers)
		if err != nil {
			s.metrics.ViewportQueries.WithLabelValues(strat.name, "error").Inc()
			warnings = append(warnings, fmt.Sprintf("%s strategy query failed: %v", strat.name, err))
			if strat.partial {
				continue
			}
			return nil, warnings
		}
		features = append(features, found...)
	}
	return features, warnings
}

// mapFeatures converts rendered features to streams, skipping malformed ones
// individually.
func (s *Service) mapFeatures(features []Feature) []domain.VisibleStream {
	streams := make([]domain.VisibleStream, 0, len(features))
	for _, f := range features {
		stream, err := mapFeature(f)
		if err != nil {
			s.logger.Debug("skipping malformed stream feature", "layer", f.LayerID, "error", err)
			continue
		}
		streams = append(streams, stream)
	}
	return streams
}

// postProcess applies allow-list filtering, dedupe by station id, ordering by
// descending stream order with ascending station id as the stable secondary
// key, and truncation.
func postProcess(streams []domain.VisibleStream, opts QueryOptions) []domain.VisibleStream {
	if len(opts.AllowReachIDs) > 0 {
		allowed := make(map[domain.ReachID]bool, len(opts.AllowReachIDs))
		for _, id := range opts.AllowReachIDs {
			allowed[id] = true
		}
		kept := streams[:0]
		for _, st := range streams {
			if allowed[st.ReachID] {
				kept = append(kept, st)
			}
		}
		streams = kept
	}

	if !opts.KeepDuplicates {
		seen := make(map[string]bool, len(streams))
		kept := streams[:0]
		for _, st := range streams {
			if seen[st.StationID] {
				continue
			}
			seen[st.StationID] = true
			kept = append(kept, st)
		}
		streams = kept
	}

	sort.SliceStable(streams, func(i, j int) bool {
		if streams[i].StreamOrder != streams[j].StreamOrder {
			return streams[i].StreamOrder > streams[j].StreamOrder
		}
		return streams[i].StationID < streams[j].StationID
	})

	if opts.MaxResults > 0 && len(streams) > opts.MaxResults {
		streams = streams[:opts.MaxResults]
	}
	return streams
}

// cacheKey quantizes the viewport (center to 4 decimals, zoom to 1 decimal,
// bearing to whole degrees) and serializes the options so near-identical
// camera states share an entry.
func cacheKey(view Viewport, opts QueryOptions) string {
	optsJSON, _ := json.Marshal(opts)
	return fmt.Sprintf("%.4f,%.4f|z%.1f|b%d|%s",
		view.CenterLongitude, view.CenterLatitude, view.Zoom,
		int(math.Round(view.Bearing)), optsJSON)
}

func (s *Service) cacheGet(key string) (QueryResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		return QueryResult{}, false
	}
	if s.clock.Now().Sub(entry.storedAt) >= s.ttl {
		return QueryResult{}, false
	}
	return entry.result, true
}

// cachePut stores a result, evicting the oldest insertion when over capacity.
// Insertion-order eviction, deliberately not LRU.
func (s *Service) cachePut(key string, result QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cache[key]; !exists {
		s.order = append(s.order, key)
	}
	s.cache[key] = cacheEntry{result: result, storedAt: s.clock.Now()}

	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
}
