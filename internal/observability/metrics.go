package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the flow
// service.
type Metrics struct {
	// Forecast normalization metrics.
	ForecastFetches *prometheus.CounterVec // labels: horizon, outcome={success,error}
	RiskComputed    *prometheus.CounterVec // labels: level

	// Viewport stream-query metrics.
	ViewportQueries *prometheus.CounterVec // labels: strategy, outcome={success,empty,error}
	ViewportCache   *prometheus.CounterVec // labels: result={hit,miss}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram

	// Saved-reach refresher metrics.
	RefreshCycles    prometheus.Counter
	RefreshErrors    prometheus.Counter
	RefreshDuration  prometheus.Histogram
	RefresherRunning prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ForecastFetches,
		m.RiskComputed,
		m.ViewportQueries,
		m.ViewportCache,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.RefreshCycles,
		m.RefreshErrors,
		m.RefreshDuration,
		m.RefresherRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ForecastFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "forecast_fetches_total",
			Help:      "Forecast horizon fetches by horizon and outcome.",
		}, []string{"horizon", "outcome"}),
		RiskComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "risk_computed_total",
			Help:      "Risk classifications by resulting level.",
		}, []string{"level"}),
		ViewportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "viewport_queries_total",
			Help:      "Viewport stream queries by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		ViewportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "viewport_cache_total",
			Help:      "Viewport query cache lookups by result.",
		}, []string{"result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RefreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "refresh_cycles_total",
			Help:      "Completed saved-reach refresh cycles.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "refresh_errors_total",
			Help:      "Failed reach refreshes.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete refresh cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverwatch",
			Name:      "refresher_running",
			Help:      "1 when the refresher loop is active, 0 when shut down.",
		}),
	}
}
