package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/cache"
	applogger "DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawPayload(t *testing.T, p models.ForecastJobPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestForecastJobRunsAndReleasesLock(t *testing.T) {
	f := newFixture(true)
	f.store.AddSales(1, weeklySales(30)...)
	locks := cache.NewMemoryCache()
	job := NewForecastJob(f.svc, locks, time.Minute, applogger.Nop())

	assert.Equal(t, ForecastJobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), rawPayload(t, models.ForecastJobPayload{ProductID: 1, Horizon: 5, Source: "scheduler"})))

	run, err := f.store.LatestRun(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, run.Horizon)

	// released: the lock can be taken again
	ok, err := locks.TryLock(context.Background(), lockKey(1), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForecastJobSkipsLockedProduct(t *testing.T) {
	f := newFixture(true)
	f.store.AddSales(2, weeklySales(30)...)
	locks := cache.NewMemoryCache()
	ok, err := locks.TryLock(context.Background(), lockKey(2), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	job := NewForecastJob(f.svc, locks, time.Minute, applogger.Nop())
	require.NoError(t, job.Handle(context.Background(), models.ForecastJobPayload{ProductID: 2, Horizon: 5}))

	_, err = f.store.LatestRun(context.Background(), 2)
	assert.Error(t, err, "locked product must not be forecast")
}

func TestForecastJobDropsUnretryableErrors(t *testing.T) {
	f := newFixture(true)
	f.store.AddSales(3, weeklySales(4)...)
	job := NewForecastJob(f.svc, nil, 0, applogger.Nop())

	assert.NoError(t, job.Handle(context.Background(), models.ForecastJobPayload{ProductID: 3, Horizon: 5}))
	assert.NoError(t, job.Handle(context.Background(), models.ForecastJobPayload{ProductID: 3, Horizon: 0}))
}

func TestForecastJobRejectsBadPayload(t *testing.T) {
	job := NewForecastJob(newFixture(true).svc, nil, 0, applogger.Nop())
	assert.Error(t, job.Handle(context.Background(), 42))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"productId":`)))
}
