package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	drepo "DemandCast/internal/domain/repository"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecast"
	"DemandCast/pkg/cache"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/queue"
)

const ForecastJobType = "forecast.run"

// ForecastJob executes queued forecast requests. A per-product lock keeps
// two workers from forecasting the same product at once.
type ForecastJob struct {
	svc     *ForecastService
	locker  cache.Service
	lockTTL time.Duration
	l       *applogger.Logger
}

var _ queue.Job = (*ForecastJob)(nil)

// NewForecastJob builds the job. A nil locker disables locking.
func NewForecastJob(svc *ForecastService, locker cache.Service, lockTTL time.Duration, l *applogger.Logger) *ForecastJob {
	return &ForecastJob{svc: svc, locker: locker, lockTTL: lockTTL, l: l}
}

func (j *ForecastJob) Name() string { return "forecast-runner" }

func (j *ForecastJob) Type() string { return ForecastJobType }

func lockKey(productID int64) string {
	return cache.Key("forecast", "lock", productID)
}

func (j *ForecastJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[models.ForecastJobPayload](payload)
	if err != nil {
		return err
	}
	log := j.l.With(applogger.Int64("product_id", p.ProductID), applogger.String("source", p.Source))

	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx, lockKey(p.ProductID), j.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire forecast lock: %w", err)
		}
		if !ok {
			log.Debug("forecast already running, skipping")
			return nil
		}
		defer func() {
			if err := j.locker.Unlock(context.WithoutCancel(ctx), lockKey(p.ProductID)); err != nil {
				log.Warn("release forecast lock failed", applogger.Error(err))
			}
		}()
	}

	_, err = j.svc.RunForecast(ctx, p.ProductID, p.Horizon)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, features.ErrInsufficientData),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, drepo.ErrNotFound):
		// retrying cannot help
		log.Warn("queued forecast skipped", applogger.Error(err))
		return nil
	default:
		return err
	}
}
