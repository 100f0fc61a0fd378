package nwps

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

func testNWPSClient(baseURL, analysisURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, analysisURL, "test-key", 5*time.Second, logger, observability.NewMetricsForTesting())
}

func TestReach_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reaches/10376192", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"reachId": "10376192",
			"name": "Provo River",
			"latitude": 40.2338,
			"longitude": -111.6585,
			"streamOrder": 4,
			"state": "UT"
		}`))
	}))
	defer srv.Close()

	reach, err := testNWPSClient(srv.URL, "").Reach(context.Background(), "10376192")
	require.NoError(t, err)

	assert.Equal(t, domain.ReachID("10376192"), reach.ReachID)
	assert.Equal(t, "Provo River", reach.Name)
	assert.Equal(t, 4, reach.StreamOrder)
	assert.Equal(t, "UT", reach.State)
}

func TestReach_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := testNWPSClient(srv.URL, "").Reach(context.Background(), "999999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReach_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testNWPSClient(srv.URL, "").Reach(context.Background(), "10376192")
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.Status)
}

func TestForecast_AllHorizons(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("series") {
		case "short_range":
			_, _ = w.Write([]byte(`{
				"units": "ft3/s",
				"mean": {"points": [
					{"validTime": "2026-03-01T00:00:00Z", "flow": 800},
					{"validTime": "2026-03-01T01:00:00Z", "flow": 940}
				]}
			}`))
		case "medium_range":
			_, _ = w.Write([]byte(`{
				"units": "m3/s",
				"mean": {"points": [{"validTime": "2026-03-02T00:00:00Z", "flow": 20}]},
				"members": [
					{"label": "member1", "points": [{"validTime": "2026-03-02T00:00:00Z", "flow": 18}]},
					{"points": [{"validTime": "2026-03-02T00:00:00Z", "flow": 22}]}
				]
			}`))
		case "long_range":
			_, _ = w.Write([]byte(`{"units": "ft3/s", "points": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	forecast, err := testNWPSClient(srv.URL, "").Forecast(context.Background(), "10376192")
	require.NoError(t, err)

	assert.Equal(t, domain.ReachID("10376192"), forecast.ReachID)
	require.Len(t, forecast.Series, 5)

	short := forecast.Series[0]
	assert.Equal(t, domain.HorizonShort, short.Horizon)
	assert.Equal(t, "mean", short.Label)
	require.Len(t, short.Points, 2)
	assert.InDelta(t, 940, short.Points[1].FlowCFS, 0.001)

	mediumMean := forecast.Series[1]
	assert.Equal(t, domain.HorizonMedium, mediumMean.Horizon)
	require.Len(t, mediumMean.Points, 1)
	assert.InDelta(t, 20*35.314666721, mediumMean.Points[0].FlowCFS, 0.001, "CMS horizon converted")

	assert.Equal(t, "member1", forecast.Series[2].Label)
	assert.Equal(t, "member2", forecast.Series[3].Label, "unlabeled member gets a positional label")

	long := forecast.Series[4]
	assert.Equal(t, domain.HorizonLong, long.Horizon)
	assert.Empty(t, long.Points, "empty horizon kept as an empty series")

	require.NotNil(t, forecast.PeakFlow)
	assert.InDelta(t, 940, *forecast.PeakFlow, 0.001)
}

func TestForecast_PartialHorizonFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series") == "medium_range" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"units": "ft3/s",
			"mean": {"points": [{"validTime": "2026-03-01T00:00:00Z", "flow": 500}]}
		}`))
	}))
	defer srv.Close()

	forecast, err := testNWPSClient(srv.URL, "").Forecast(context.Background(), "10376192")
	require.NoError(t, err, "one failing horizon does not fail the fetch")

	horizons := make([]domain.Horizon, 0, len(forecast.Series))
	for _, s := range forecast.Series {
		horizons = append(horizons, s.Horizon)
	}
	assert.Equal(t, []domain.Horizon{domain.HorizonShort, domain.HorizonLong}, horizons)
}

func TestForecast_AllHorizonsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testNWPSClient(srv.URL, "").Forecast(context.Background(), "10376192")
	require.Error(t, err)
}

func TestReturnPeriods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10376192,945021", r.URL.Query().Get("comids"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"feature_id": 10376192, "return_period_2": 14.16, "return_period_25": 40, "return_period_50": 60},
			{"feature_id": 945021, "return_period_2": 5}
		]`))
	}))
	defer srv.Close()

	rows, err := testNWPSClient("", srv.URL).ReturnPeriods(context.Background(),
		[]domain.ReachID{"10376192", "945021"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.ReachID("10376192"), rows[0].ReachID)
	assert.InDelta(t, 500.0, rows[0].Thresholds.RP2, 0.5, "thresholds arrive in CMS and convert to CFS")
}

func TestReturnPeriods_NoReaches(t *testing.T) {
	rows, err := testNWPSClient("", "http://unused.invalid").ReturnPeriods(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{Status: 502, Body: "bad gateway"}
	assert.True(t, strings.Contains(err.Error(), "502"))
}
