package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	drepo "DemandCast/internal/domain/repository"
	"DemandCast/internal/services/forecast"
	"DemandCast/internal/services/risk"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/otel"
	"DemandCast/pkg/queue"
)

// ErrQueueDisabled is returned by EnqueueForecast when no queue is wired.
var ErrQueueDisabled = errors.New("forecast queue is disabled")

// ForecastService runs the pipeline for a product, persists the run and
// announces it. Notification failures are logged and never fail a run.
type ForecastService struct {
	sales      drepo.SalesSource
	store      drepo.ForecastStore
	pipeline   *forecast.Pipeline
	notifier   drepo.Notifier
	metrics    drepo.Metrics
	queue      queue.QueueService
	maxHorizon int
	now        func() time.Time
	l          *applogger.Logger
}

type ServiceOption func(*ForecastService)

// WithQueue enables EnqueueForecast.
func WithQueue(q queue.QueueService) ServiceOption {
	return func(s *ForecastService) { s.queue = q }
}

func WithMaxHorizon(n int) ServiceOption {
	return func(s *ForecastService) { s.maxHorizon = n }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *ForecastService) { s.now = now }
}

func NewForecastService(
	sales drepo.SalesSource,
	store drepo.ForecastStore,
	pipeline *forecast.Pipeline,
	notifier drepo.Notifier,
	metrics drepo.Metrics,
	l *applogger.Logger,
	opts ...ServiceOption,
) *ForecastService {
	s := &ForecastService{
		sales:      sales,
		store:      store,
		pipeline:   pipeline,
		notifier:   notifier,
		metrics:    metrics,
		maxHorizon: 90,
		now:        time.Now,
		l:          l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunForecast forecasts horizon days for productID and persists the result.
// Risk is evaluated when the product's stock levels are known.
func (s *ForecastService) RunForecast(ctx context.Context, productID int64, horizon int) (*models.ForecastRun, error) {
	start := s.now()
	ctx, span := otel.StartSpan(ctx, "forecast.run", otel.RunAttributes(productID, horizon)...)
	defer span.End()

	if horizon < 1 || horizon > s.maxHorizon {
		return nil, fmt.Errorf("%w: got %d, max %d", forecast.ErrInvalidHorizon, horizon, s.maxHorizon)
	}

	obs, err := s.sales.FetchObservations(ctx, productID)
	if err != nil {
		s.metrics.RecordError("fetch")
		otel.RecordError(span, err)
		return nil, fmt.Errorf("fetch observations for product %d: %w", productID, err)
	}

	res, err := s.pipeline.Run(ctx, obs, horizon)
	if err != nil {
		s.metrics.RecordError("pipeline")
		otel.RecordError(span, err)
		return nil, err
	}

	run := s.toRun(productID, horizon, res)
	span.SetAttributes(otel.ResultAttributes(run.Model, run.Fallback, run.MAE)...)

	product, known := s.product(ctx, productID)
	var assessment models.RiskAssessment
	if known {
		assessment = risk.Evaluate(product, run.Points, run.CreatedAt)
		run.Risk = &assessment
	}

	id, err := s.store.SaveRun(ctx, run)
	if err != nil {
		s.metrics.RecordError("persist")
		otel.RecordError(span, err)
		return nil, fmt.Errorf("save forecast run: %w", err)
	}
	run.RunID = id
	span.SetAttributes(otel.AttrRunID.String(id))

	s.metrics.RecordRun(run.Model, run.Fallback)
	s.metrics.RecordAccuracy(productID, run.MAE, run.Accuracy)
	s.metrics.RecordLatency("forecast_run", s.now().Sub(start).Seconds())

	s.announce(ctx, run, product, known)

	s.l.Info("forecast run completed",
		applogger.Int64("product_id", productID),
		applogger.String("run_id", id),
		applogger.String("model", run.Model),
		applogger.Int("horizon", horizon),
		applogger.Float64("mae", run.MAE),
		applogger.Duration("took", s.now().Sub(start)))
	if !run.Fallback {
		s.l.Debug("ensemble weights",
			applogger.String("run_id", id),
			applogger.Any("weights", run.Weights))
	}
	return run, nil
}

func (s *ForecastService) toRun(productID int64, horizon int, res forecast.Result) *models.ForecastRun {
	out := res.Output()
	run := &models.ForecastRun{
		ProductID:         productID,
		Model:             out.Model,
		Horizon:           horizon,
		MAE:               out.MAE,
		Accuracy:          out.Accuracy,
		BandPolicy:        string(out.BandPolicy),
		Points:            out.Points,
		Explanations:      out.Explanations,
		FeatureImportance: out.FeatureImportance,
		CreatedAt:         s.now().UTC(),
	}
	switch r := res.(type) {
	case *forecast.EnsembleResult:
		run.Weights = r.Weights
	case *forecast.FallbackResult:
		run.Fallback = true
		if r.Cause != nil {
			run.FallbackCause = r.Cause.Error()
		}
		s.l.Warn("forecast fell back to moving average",
			applogger.Int64("product_id", productID),
			applogger.String("cause", run.FallbackCause))
	}
	return run
}

func (s *ForecastService) product(ctx context.Context, productID int64) (models.Product, bool) {
	p, err := s.sales.GetProduct(ctx, productID)
	switch {
	case err == nil:
		return p, true
	case errors.Is(err, drepo.ErrNotFound):
		s.l.Debug("product has no stock record, skipping risk", applogger.Int64("product_id", productID))
	default:
		s.metrics.RecordError("product")
		s.l.Warn("product lookup failed, skipping risk",
			applogger.Int64("product_id", productID),
			applogger.Error(err))
	}
	return models.Product{}, false
}

func (s *ForecastService) announce(ctx context.Context, run *models.ForecastRun, product models.Product, known bool) {
	ev := models.RunEvent{
		RunID:       run.RunID,
		ProductID:   run.ProductID,
		Model:       run.Model,
		Horizon:     run.Horizon,
		Fallback:    run.Fallback,
		TotalDemand: run.TotalDemand(),
		CreatedAt:   run.CreatedAt,
	}
	if err := s.notifier.NotifyRun(ctx, ev); err != nil {
		s.metrics.RecordError("notify")
		s.l.Error("run notification failed", applogger.String("run_id", run.RunID), applogger.Error(err))
	}
	if !known {
		return
	}
	for _, alert := range risk.Alerts(product, *run.Risk, run.RunID) {
		alert.CreatedAt = run.CreatedAt
		s.metrics.RecordAlert(alert.AlertType, alert.Level)
		if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
			s.metrics.RecordError("notify")
			s.l.Error("risk alert notification failed",
				applogger.Int64("product_id", alert.ProductID),
				applogger.String("alert_type", string(alert.AlertType)),
				applogger.Error(err))
		}
	}
}

// LatestForecast returns the most recent persisted run for productID.
func (s *ForecastService) LatestForecast(ctx context.Context, productID int64) (*models.ForecastRun, error) {
	run, err := s.store.LatestRun(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("latest forecast: %w", err)
	}
	return run, nil
}

// EnqueueForecast hands a run to the background workers.
func (s *ForecastService) EnqueueForecast(ctx context.Context, productID int64, horizon int, source string) error {
	if s.queue == nil {
		return ErrQueueDisabled
	}
	if horizon < 1 || horizon > s.maxHorizon {
		return fmt.Errorf("%w: got %d, max %d", forecast.ErrInvalidHorizon, horizon, s.maxHorizon)
	}
	payload := models.ForecastJobPayload{ProductID: productID, Horizon: horizon, Source: source}
	if err := s.queue.PublishMessage(ctx, ForecastJobType, payload); err != nil {
		return fmt.Errorf("enqueue forecast for product %d: %w", productID, err)
	}
	return nil
}

// Health checks the run store.
func (s *ForecastService) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
