package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	applogger "DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunOnceQueuesEveryProduct(t *testing.T) {
	f := newFixture(true)
	for id := int64(1); id <= 3; id++ {
		f.store.PutProduct(models.Product{ID: id})
	}
	s := NewForecastScheduler(f.store, f.svc, time.Hour, 14, applogger.Nop())

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	msgs := f.queue.published()
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Payload.ProductID)
		assert.Equal(t, 14, m.Payload.Horizon)
		assert.Equal(t, "scheduler", m.Payload.Source)
	}
}

func TestSchedulerRunOnceReportsEnqueueFailure(t *testing.T) {
	f := newFixture(true)
	f.store.PutProduct(models.Product{ID: 1})
	f.queue.err = errors.New("redis down")
	s := NewForecastScheduler(f.store, f.svc, time.Hour, 14, applogger.Nop())

	n, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, 0, n)
}

func TestSchedulerStartRunsImmediatelyAndStops(t *testing.T) {
	f := newFixture(true)
	f.store.PutProduct(models.Product{ID: 5})
	s := NewForecastScheduler(f.store, f.svc, time.Hour, 7, applogger.Nop())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return len(f.queue.published()) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Len(t, f.queue.published(), 1)
}
