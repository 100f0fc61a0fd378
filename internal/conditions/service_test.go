package conditions

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

type fakeFetcher struct {
	forecast    domain.NormalizedFlowForecast
	forecastErr error
	rows        []domain.ReachReturnPeriods
	rowsErr     error

	forecastCalls int
}

func (f *fakeFetcher) Reach(context.Context, domain.ReachID) (domain.RiverReach, error) {
	return domain.RiverReach{}, nil
}

func (f *fakeFetcher) Forecast(context.Context, domain.ReachID) (domain.NormalizedFlowForecast, error) {
	f.forecastCalls++
	return f.forecast, f.forecastErr
}

func (f *fakeFetcher) ReturnPeriods(context.Context, []domain.ReachID) ([]domain.ReachReturnPeriods, error) {
	return f.rows, f.rowsErr
}

func newService(f Fetcher, clock clockwork.Clock) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(f, logger, observability.NewMetricsForTesting(), clock)
}

func testForecast(reachID domain.ReachID, at time.Time, flow float64) domain.NormalizedFlowForecast {
	return domain.NormalizedFlowForecast{
		ReachID: reachID,
		Series: []domain.NormalizedSeries{{
			Horizon: domain.HorizonShort,
			Label:   "mean",
			Points:  []domain.NormalizedPoint{{Time: at, FlowCFS: flow}},
		}},
	}
}

func TestCondition_ComputesRiskFromThresholds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	fetcher := &fakeFetcher{
		forecast: testForecast("10376192", now, 1200),
		rows: []domain.ReachReturnPeriods{{
			ReachID:    "10376192",
			Thresholds: domain.ReturnPeriodThresholds{RP2: 500, RP25: 1000, RP50: 1500},
		}},
	}
	svc := newService(fetcher, clock)

	snap, err := svc.Condition(context.Background(), "10376192")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskHigh, snap.Risk)
	require.NotNil(t, snap.Current)
	assert.InDelta(t, 1200, snap.Current.FlowCFS, 0.001)
	require.NotNil(t, snap.Thresholds)
	require.NotNil(t, snap.Forecast.Risk)
	assert.Equal(t, domain.RiskHigh, *snap.Forecast.Risk)
	assert.Equal(t, now, snap.UpdatedAt)
}

func TestCondition_MissingThresholdsDefaultsNormal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{
		forecast: testForecast("10376192", now, 9000),
		rowsErr:  errors.New("analysis service down"),
	}
	svc := newService(fetcher, clockwork.NewFakeClockAt(now))

	snap, err := svc.Condition(context.Background(), "10376192")
	require.NoError(t, err, "threshold failure degrades instead of erroring")

	assert.Equal(t, domain.RiskNormal, snap.Risk)
	assert.Nil(t, snap.Thresholds)
}

func TestCondition_ForecastErrorFails(t *testing.T) {
	fetcher := &fakeFetcher{forecastErr: errors.New("upstream down")}
	svc := newService(fetcher, clockwork.NewFakeClock())

	_, err := svc.Condition(context.Background(), "10376192")
	require.Error(t, err)
}

func TestCached(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{forecast: testForecast("10376192", now, 100)}
	svc := newService(fetcher, clockwork.NewFakeClockAt(now))

	_, ok := svc.Cached("10376192")
	assert.False(t, ok)

	_, err := svc.Condition(context.Background(), "10376192")
	require.NoError(t, err)

	snap, ok := svc.Cached("10376192")
	require.True(t, ok)
	assert.Equal(t, domain.ReachID("10376192"), snap.ReachID)
	assert.Equal(t, 1, fetcher.forecastCalls, "cached read skips upstream")
}

func TestRefresh_UpdatesSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	fetcher := &fakeFetcher{forecast: testForecast("10376192", now, 100)}
	svc := newService(fetcher, clock)

	require.NoError(t, svc.Refresh(context.Background(), "10376192"))

	clock.Advance(time.Hour)
	fetcher.forecast = testForecast("10376192", now.Add(time.Hour), 250)
	require.NoError(t, svc.Refresh(context.Background(), "10376192"))

	snap, ok := svc.Cached("10376192")
	require.True(t, ok)
	require.NotNil(t, snap.Current)
	assert.InDelta(t, 250, snap.Current.FlowCFS, 0.001)
	assert.Equal(t, 2, fetcher.forecastCalls)
}
