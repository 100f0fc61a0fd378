package viewport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

// fakeSurface scripts QueryRenderedFeatures responses per call.
type fakeSurface struct {
	ready   bool
	layers  []string
	respond func(call int, rect Rect, layerIDs []string) ([]Feature, error)
	calls   []Rect
}

func (f *fakeSurface) Ready() bool              { return f.ready }
func (f *fakeSurface) StreamLayerIDs() []string { return f.layers }

func (f *fakeSurface) QueryRenderedFeatures(_ context.Context, _ Viewport, rect Rect, layerIDs []string) ([]Feature, error) {
	call := len(f.calls)
	f.calls = append(f.calls, rect)
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(call, rect, layerIDs)
}

func pointFeature(stationID string, order float64, lon, lat float64) Feature {
	return Feature{
		LayerID:    "streams",
		Properties: map[string]any{"station_id": stationID, "streamOrde": order},
		Geometry:   Geometry{Type: "Point", Point: []float64{lon, lat}},
	}
}

func testView() Viewport {
	return Viewport{
		CenterLongitude: -111.6585,
		CenterLatitude:  40.2338,
		Zoom:            12.3,
		Bearing:         0,
		Width:           1200,
		Height:          800,
	}
}

func newTestService(surface MapSurface, clock clockwork.Clock) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(surface, logger, observability.NewMetricsForTesting(), clock, 0, 0)
}

func TestQuery_SurfaceNotReady(t *testing.T) {
	svc := newTestService(&fakeSurface{ready: false}, clockwork.NewFakeClock())

	_, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.ErrorIs(t, err, ErrSurfaceNotReady)
}

func TestQuery_ChunkedSuccess(t *testing.T) {
	surface := &fakeSurface{
		ready:  true,
		layers: []string{"streams"},
		respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
			if call == 0 {
				return []Feature{pointFeature("100", 5, -111.7, 40.3)}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(surface, clockwork.NewFakeClock())

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, "chunked", result.Strategy)
	require.Len(t, result.Streams, 1)
	assert.Equal(t, "100", result.Streams[0].StationID)
	assert.Len(t, surface.calls, 4, "chunked queries all four quadrants")
}

func TestQuery_QuadrantFailureIsSwallowed(t *testing.T) {
	surface := &fakeSurface{
		ready:  true,
		layers: []string{"streams"},
		respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
			if call == 1 {
				return nil, errors.New("tile not loaded")
			}
			return []Feature{pointFeature("200", 3, -111.6, 40.2)}, nil
		},
	}
	svc := newTestService(surface, clockwork.NewFakeClock())

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, "chunked", result.Strategy)
	require.Len(t, result.Streams, 1, "partial results are acceptable")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "chunked strategy query failed")
}

func TestQuery_FallsThroughToSmallerArea(t *testing.T) {
	surface := &fakeSurface{
		ready:  true,
		layers: []string{"streams"},
		respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
			if call < 4 {
				return nil, nil // chunked quadrants: empty
			}
			return []Feature{pointFeature("300", 2, -111.65, 40.23)}, nil
		},
	}
	svc := newTestService(surface, clockwork.NewFakeClock())

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, "smaller-area", result.Strategy)
	require.Len(t, result.Streams, 1)
	assert.Contains(t, result.Warnings, "chunked strategy returned no features")
}

func TestQuery_AllStrategiesEmpty(t *testing.T) {
	surface := &fakeSurface{ready: true, layers: []string{"streams"}}
	svc := newTestService(surface, clockwork.NewFakeClock())

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err, "exhausted fallbacks are not an error")

	assert.Empty(t, result.Streams)
	assert.Equal(t, "", result.Strategy)
	assert.Contains(t, result.Warnings, "chunked strategy returned no features")
	assert.Contains(t, result.Warnings, "smaller-area strategy returned no features")
	assert.Contains(t, result.Warnings, "center-point strategy returned no features")
	assert.Len(t, surface.calls, 6, "4 quadrants + smaller area + center point")
}

func TestQuery_MalformedFeaturesSkipped(t *testing.T) {
	surface := &fakeSurface{
		ready:  true,
		layers: []string{"streams"},
		respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
			if call != 0 {
				return nil, nil
			}
			return []Feature{
				{Properties: map[string]any{"streamOrde": 4.0}, Geometry: Geometry{Type: "Point", Point: []float64{-111, 40}}},
				{Properties: map[string]any{"station_id": "bad-order", "streamOrde": "four"}, Geometry: Geometry{Type: "Point", Point: []float64{-111, 40}}},
				{Properties: map[string]any{"station_id": "poly", "streamOrde": 4.0}, Geometry: Geometry{Type: "Polygon"}},
				pointFeature("ok", 4, -111, 40),
			}, nil
		},
	}
	svc := newTestService(surface, clockwork.NewFakeClock())

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	require.Len(t, result.Streams, 1)
	assert.Equal(t, "ok", result.Streams[0].StationID)
}

func TestQuery_PostProcessing(t *testing.T) {
	features := []Feature{
		pointFeature("20", 3, -111.1, 40.1),
		pointFeature("10", 7, -111.2, 40.2),
		pointFeature("30", 7, -111.3, 40.3),
		pointFeature("10", 7, -111.2, 40.2), // duplicate station
		pointFeature("40", 1, -111.4, 40.4),
	}
	newSvc := func() (*Service, *fakeSurface) {
		surface := &fakeSurface{
			ready:  true,
			layers: []string{"streams"},
			respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
				if call == 0 {
					return features, nil
				}
				return nil, nil
			},
		}
		return newTestService(surface, clockwork.NewFakeClock()), surface
	}

	t.Run("dedupe and sort by order desc then station asc", func(t *testing.T) {
		svc, _ := newSvc()
		result, err := svc.Query(context.Background(), testView(), QueryOptions{})
		require.NoError(t, err)

		ids := make([]string, 0, len(result.Streams))
		for _, st := range result.Streams {
			ids = append(ids, st.StationID)
		}
		assert.Equal(t, []string{"10", "30", "20", "40"}, ids)
	})

	t.Run("keep duplicates when requested", func(t *testing.T) {
		svc, _ := newSvc()
		result, err := svc.Query(context.Background(), testView(), QueryOptions{KeepDuplicates: true})
		require.NoError(t, err)
		assert.Len(t, result.Streams, 5)
	})

	t.Run("allow-list filter", func(t *testing.T) {
		svc, _ := newSvc()
		result, err := svc.Query(context.Background(), testView(), QueryOptions{
			AllowReachIDs: []domain.ReachID{"30", "40"},
		})
		require.NoError(t, err)
		require.Len(t, result.Streams, 2)
		assert.Equal(t, "30", result.Streams[0].StationID)
		assert.Equal(t, "40", result.Streams[1].StationID)
	})

	t.Run("max results truncation", func(t *testing.T) {
		svc, _ := newSvc()
		result, err := svc.Query(context.Background(), testView(), QueryOptions{MaxResults: 2})
		require.NoError(t, err)
		require.Len(t, result.Streams, 2)
		assert.Equal(t, "10", result.Streams[0].StationID)
		assert.Equal(t, "30", result.Streams[1].StationID)
	})
}

func TestQuery_CacheHit(t *testing.T) {
	surface := &fakeSurface{
		ready:  true,
		layers: []string{"streams"},
		respond: func(call int, _ Rect, _ []string) ([]Feature, error) {
			return []Feature{pointFeature("100", 5, -111.7, 40.3)}, nil
		},
	}
	clock := clockwork.NewFakeClock()
	svc := newTestService(surface, clock)

	first, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	callsAfterFirst := len(surface.calls)

	second, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Streams, second.Streams, "cached streams are identical")
	assert.Contains(t, second.Warnings, cachedResultsWarning)
	assert.Len(t, surface.calls, callsAfterFirst, "no surface queries on a cache hit")

	// A third call must see the stored entry unchanged, not a warning that
	// grew on each hit.
	third, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, second.Warnings, third.Warnings)
}

func TestQuery_CacheExpiresByTTL(t *testing.T) {
	surface := &fakeSurface{ready: true, layers: []string{"streams"}}
	clock := clockwork.NewFakeClock()
	svc := newTestService(surface, clock)

	_, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)
	callsAfterFirst := len(surface.calls)

	clock.Advance(31 * time.Second)

	result, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Greater(t, len(surface.calls), callsAfterFirst, "expired entry forces a fresh query")
}

func TestQuery_DifferentOptionsMissCache(t *testing.T) {
	surface := &fakeSurface{ready: true, layers: []string{"streams"}}
	svc := newTestService(surface, clockwork.NewFakeClock())

	_, err := svc.Query(context.Background(), testView(), QueryOptions{})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), testView(), QueryOptions{MaxResults: 3})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestCachePut_InsertionOrderEviction(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(&fakeSurface{ready: true}, logger, observability.NewMetricsForTesting(), clockwork.NewFakeClock(), time.Minute, 2)

	svc.cachePut("a", QueryResult{Strategy: "chunked"})
	svc.cachePut("b", QueryResult{Strategy: "chunked"})
	svc.cachePut("c", QueryResult{Strategy: "chunked"}) // evicts "a"

	_, ok := svc.cacheGet("a")
	assert.False(t, ok, "oldest insertion evicted first")

	// Unlike LRU, reading "b" does not protect it.
	_, ok = svc.cacheGet("b")
	require.True(t, ok)
	svc.cachePut("d", QueryResult{Strategy: "chunked"}) // evicts "b"
	_, ok = svc.cacheGet("b")
	assert.False(t, ok)
}
