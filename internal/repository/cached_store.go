package repository

import (
	"context"
	"errors"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	"DemandCast/pkg/cache"
	applogger "DemandCast/pkg/logger"
)

const latestKeyPrefix = "forecast:latest"

// CachedStore serves LatestRun from a cache and refreshes it on SaveRun.
// Cache failures degrade to the backing store.
type CachedStore struct {
	domrepo.Storage
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedStore(store domrepo.Storage, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedStore {
	return &CachedStore{Storage: store, cache: c, ttl: ttl, l: l}
}

func latestKey(productID int64) string {
	return cache.Key(latestKeyPrefix, productID)
}

func (s *CachedStore) SaveRun(ctx context.Context, run *models.ForecastRun) (string, error) {
	id, err := s.Storage.SaveRun(ctx, run)
	if err != nil {
		return "", err
	}
	cp := *run
	cp.RunID = id
	if err := s.cache.Set(ctx, latestKey(run.ProductID), &cp, s.ttl); err != nil {
		s.l.Warn("latest forecast cache refresh failed",
			applogger.Int64("product_id", run.ProductID),
			applogger.Error(err))
		_ = s.cache.Delete(ctx, latestKey(run.ProductID))
	}
	return id, nil
}

func (s *CachedStore) LatestRun(ctx context.Context, productID int64) (*models.ForecastRun, error) {
	var run models.ForecastRun
	err := s.cache.Get(ctx, latestKey(productID), &run)
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("latest forecast cache read failed",
			applogger.Int64("product_id", productID),
			applogger.Error(err))
	}

	fresh, err := s.Storage.LatestRun(ctx, productID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, latestKey(productID), fresh, s.ttl)
	return fresh, nil
}
