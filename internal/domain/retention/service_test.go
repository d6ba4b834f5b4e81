package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoffs map[string]time.Time
	counts  map[string]int64
	fail    map[string]bool
}

func newFakePurger() *fakePurger {
	return &fakePurger{cutoffs: map[string]time.Time{}, counts: map[string]int64{}, fail: map[string]bool{}}
}

func (f *fakePurger) Purge(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	f.cutoffs[category] = cutoff
	if f.fail[category] {
		return 0, errors.New("table locked")
	}
	return f.counts[category], nil
}

var fixedNow = time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

func TestRunUsesPolicyCutoffs(t *testing.T) {
	store := newFakePurger()
	store.counts[CategoryNotifications] = 4
	store.counts[CategoryIdempotencyKeys] = 2

	svc := NewService(store, DefaultPolicy(30*24*time.Hour, 90*24*time.Hour))
	svc.now = func() time.Time { return fixedNow }

	details, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.cutoffs, len(Categories))
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), store.cutoffs[CategoryNotifications])
	assert.Equal(t, fixedNow.Add(-24*time.Hour), store.cutoffs[CategoryIdempotencyKeys])

	m := details.(map[string]any)
	deleted := m["deleted"].(map[string]int64)
	assert.Equal(t, int64(4), deleted[CategoryNotifications])
	assert.Equal(t, int64(2), deleted[CategoryIdempotencyKeys])
	assert.Equal(t, 0, m["failed"])
}

func TestRunSkipsDisabledCategories(t *testing.T) {
	store := newFakePurger()
	svc := NewService(store, DefaultPolicy(0, 0))
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, store.cutoffs, CategoryNotifications)
	assert.NotContains(t, store.cutoffs, CategoryJobRuns)
	assert.Contains(t, store.cutoffs, CategoryPasswordResets)
}

func TestRunToleratesPartialFailure(t *testing.T) {
	store := newFakePurger()
	store.fail[CategoryJobRuns] = true

	details, err := NewService(store, DefaultPolicy(time.Hour, time.Hour)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, details.(map[string]any)["failed"])
}

func TestRunFailsWhenEveryCategoryFails(t *testing.T) {
	store := newFakePurger()
	for _, c := range Categories {
		store.fail[c] = true
	}

	_, err := NewService(store, DefaultPolicy(time.Hour, time.Hour)).Run(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(newFakePurger(), DefaultPolicy(time.Hour, time.Hour)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
