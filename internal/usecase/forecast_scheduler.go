package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	drepo "DemandCast/internal/domain/repository"
	applogger "DemandCast/pkg/logger"
)

// ForecastScheduler periodically enqueues a forecast for every product.
type ForecastScheduler struct {
	sales    drepo.SalesSource
	svc      *ForecastService
	interval time.Duration
	horizon  int
	l        *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewForecastScheduler(sales drepo.SalesSource, svc *ForecastService, interval time.Duration, horizon int, l *applogger.Logger) *ForecastScheduler {
	return &ForecastScheduler{sales: sales, svc: svc, interval: interval, horizon: horizon, l: l}
}

// Start runs one pass immediately and then every interval until Stop.
func (s *ForecastScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.l.Error("scheduled forecast pass failed", applogger.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	s.l.Info("forecast scheduler started",
		applogger.Duration("interval", s.interval),
		applogger.Int("horizon", s.horizon))
}

func (s *ForecastScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunOnce enqueues every product and returns how many were queued. It keeps
// going past individual enqueue failures and reports the first one.
func (s *ForecastScheduler) RunOnce(ctx context.Context) (int, error) {
	products, err := s.sales.ListProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	var (
		queued   int
		firstErr error
	)
	for _, p := range products {
		if ctx.Err() != nil {
			return queued, ctx.Err()
		}
		if err := s.svc.EnqueueForecast(ctx, p.ID, s.horizon, "scheduler"); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		queued++
	}
	s.l.Info("scheduled forecasts queued",
		applogger.Int("queued", queued),
		applogger.Int("products", len(products)))
	return queued, firstErr
}
