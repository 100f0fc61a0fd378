// Package refresh keeps pinned reach conditions warm by periodically
// re-fetching every saved reach.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

// ReachLister supplies the set of reaches to keep warm. *store.Locations
// satisfies it.
type ReachLister interface {
	AllReachIDs(ctx context.Context) ([]domain.ReachID, error)
}

// ConditionRefresher re-fetches one reach's condition. *conditions.Service
// satisfies it.
type ConditionRefresher interface {
	Refresh(ctx context.Context, reachID domain.ReachID) error
}

// Refresher runs the periodic warm-up loop.
type Refresher struct {
	lister   ReachLister
	conds    ConditionRefresher
	logger   *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
	ready    atomic.Bool
}

// New creates a Refresher cycling at the given interval.
func New(lister ReachLister, conds ConditionRefresher, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Refresher {
	return &Refresher{
		lister:   lister,
		conds:    conds,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

// CheckReadiness returns nil once at least one refresh cycle has completed,
// or an error describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("refresher has not completed a cycle yet")
	}
	return nil
}

// Run executes refresh cycles until the context is cancelled. The first cycle
// starts immediately; cycle failures back off exponentially before the loop
// returns to the regular interval.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if err := r.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("refresher stopping", "reason", ctx.Err())
				return nil
			}
			r.logger.Error("refresh cycle failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if !sleepWithContext(ctx, r.interval) {
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// cycle refreshes every pinned reach once. Individual reach failures are
// counted and logged but do not fail the cycle; only a listing failure does.
func (r *Refresher) cycle(ctx context.Context) error {
	start := time.Now()

	ids, err := r.lister.AllReachIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.conds.Refresh(ctx, id); err != nil {
			r.logger.Warn("reach refresh failed, skipping",
				"reach_id", id,
				"error", err,
			)
			r.metrics.RefreshErrors.Inc()
			failed++
		}
	}

	r.metrics.RefreshCycles.Inc()
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	r.ready.Store(true)

	r.logger.Info("refresh cycle complete",
		"reaches", len(ids),
		"failed", failed,
		"duration", time.Since(start),
	)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
