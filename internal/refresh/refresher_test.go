package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/river-flow-service/internal/domain"
	"github.com/riverwatch/river-flow-service/internal/observability"
)

type fakeLister struct {
	mu    sync.Mutex
	ids   []domain.ReachID
	err   error
	calls int
}

func (f *fakeLister) AllReachIDs(context.Context) ([]domain.ReachID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.ids, f.err
}

type fakeConditions struct {
	mu        sync.Mutex
	refreshed []domain.ReachID
	errFor    map[domain.ReachID]error
}

func (f *fakeConditions) Refresh(_ context.Context, id domain.ReachID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, id)
	return f.errFor[id]
}

func (f *fakeConditions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshed)
}

func newRefresher(l ReachLister, c ConditionRefresher, interval time.Duration) *Refresher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(l, c, logger, observability.NewMetricsForTesting(), interval)
}

func TestRefresher_NotReadyBeforeFirstCycle(t *testing.T) {
	r := newRefresher(&fakeLister{}, &fakeConditions{}, time.Hour)
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_ReadyAfterFirstCycle(t *testing.T) {
	lister := &fakeLister{ids: []domain.ReachID{"101", "202"}}
	conds := &fakeConditions{}
	r := newRefresher(lister, conds, time.Hour)

	require.NoError(t, r.cycle(context.Background()))

	assert.NoError(t, r.CheckReadiness(context.Background()))
	assert.Equal(t, []domain.ReachID{"101", "202"}, conds.refreshed)
}

func TestRefresher_ReachFailureDoesNotFailCycle(t *testing.T) {
	lister := &fakeLister{ids: []domain.ReachID{"101", "202", "303"}}
	conds := &fakeConditions{errFor: map[domain.ReachID]error{"202": errors.New("upstream down")}}
	r := newRefresher(lister, conds, time.Hour)

	require.NoError(t, r.cycle(context.Background()))
	assert.Equal(t, 3, conds.count(), "remaining reaches still refreshed")
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_ListFailureFailsCycle(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	r := newRefresher(lister, &fakeConditions{}, time.Hour)

	require.Error(t, r.cycle(context.Background()))
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_RunStopsOnContextCancel(t *testing.T) {
	lister := &fakeLister{ids: []domain.ReachID{"101"}}
	conds := &fakeConditions{}
	r := newRefresher(lister, conds, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return conds.count() >= 2 },
		2*time.Second, 5*time.Millisecond, "expected repeated cycles")
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestNextBackoff(t *testing.T) {
	maxBackoff := 5 * time.Second
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(3*time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff, maxBackoff))
}
