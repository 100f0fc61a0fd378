// Package conditions assembles the current state of a reach: normalized
// forecast, return-period thresholds, the selected present-moment flow, and
// the resulting risk level. Snapshots are cached so the API can serve reads
// while the refresher keeps pinned reaches warm.
package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

// Fetcher is the upstream surface the service needs. *nwps.Client satisfies
// it.
type Fetcher interface {
	Reach(ctx context.Context, reachID domain.ReachID) (domain.RiverReach, error)
	Forecast(ctx context.Context, reachID domain.ReachID) (domain.NormalizedFlowForecast, error)
	ReturnPeriods(ctx context.Context, reachIDs []domain.ReachID) ([]domain.ReachReturnPeriods, error)
}

// Snapshot is the assembled condition of one reach at UpdatedAt.
type Snapshot struct {
	ReachID    domain.ReachID                 `json:"reachId"`
	Forecast   domain.NormalizedFlowForecast  `json:"forecast"`
	Thresholds *domain.ReturnPeriodThresholds `json:"thresholds,omitempty"`
	Current    *domain.FlowAt                 `json:"current,omitempty"`
	Risk       domain.RiskLevel               `json:"risk"`
	UpdatedAt  time.Time                      `json:"updatedAt"`
}

// Service fetches and caches reach conditions.
type Service struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu        sync.RWMutex
	snapshots map[domain.ReachID]Snapshot
}

func New(fetcher Fetcher, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Service {
	return &Service{
		fetcher:   fetcher,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		snapshots: make(map[domain.ReachID]Snapshot),
	}
}

// Condition returns a fresh snapshot for the reach, fetching forecast and
// thresholds upstream. Missing thresholds degrade to a normal-risk snapshot
// rather than failing the whole read.
func (s *Service) Condition(ctx context.Context, reachID domain.ReachID) (Snapshot, error) {
	forecast, err := s.fetcher.Forecast(ctx, reachID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("condition %s: %w", reachID, err)
	}

	snap := Snapshot{
		ReachID:   reachID,
		Forecast:  forecast,
		UpdatedAt: s.clock.Now().UTC(),
	}
	snap.Current = domain.CurrentFlowAt(&forecast, s.clock.Now())

	rows, err := s.fetcher.ReturnPeriods(ctx, []domain.ReachID{reachID})
	if err != nil {
		s.logger.Warn("return periods unavailable, defaulting risk",
			"reach_id", reachID,
			"error", err,
		)
	}
	for _, row := range rows {
		if row.ReachID == reachID {
			t := row.Thresholds
			snap.Thresholds = &t
			break
		}
	}

	snap.Risk = domain.RiskNormal
	if snap.Current != nil && snap.Thresholds != nil {
		snap.Risk = domain.ComputeRisk(snap.Current.FlowCFS, *snap.Thresholds)
	}
	s.metrics.RiskComputed.WithLabelValues(string(snap.Risk)).Inc()
	snap.Forecast.Risk = &snap.Risk

	s.mu.Lock()
	s.snapshots[reachID] = snap
	s.mu.Unlock()
	return snap, nil
}

// Cached returns the last stored snapshot for a reach, if any.
func (s *Service) Cached(reachID domain.ReachID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[reachID]
	return snap, ok
}

// Refresh re-fetches one reach, keeping its snapshot warm.
func (s *Service) Refresh(ctx context.Context, reachID domain.ReachID) error {
	_, err := s.Condition(ctx, reachID)
	return err
}
