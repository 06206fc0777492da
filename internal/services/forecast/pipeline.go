package forecast

import (
	"context"
	"errors"
	"math"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/services/ensemble"
	"DemandCast/internal/services/features"
)

const EnsembleModel = "Ensemble(GBM+RF)"

// Config tunes the pipeline.
type Config struct {
	// MinDays is the shortest series accepted when the ensemble is enabled.
	MinDays int
	// FallbackMinDays applies when the ensemble is disabled.
	FallbackMinDays int
	EnsembleEnabled bool
	BandPolicy      BandPolicy
	TopFeatures     int
	// TrainFraction is the minimum share of days used for training.
	TrainFraction float64
	Ensemble      ensemble.Options
}

func DefaultConfig() Config {
	return Config{
		MinDays:         14,
		FallbackMinDays: 7,
		EnsembleEnabled: true,
		BandPolicy:      BandFixed,
		TopFeatures:     10,
		TrainFraction:   0.7,
		Ensemble:        ensemble.DefaultOptions(),
	}
}

// Pipeline runs normalize, build, train, forecast and explain for one
// product, falling back to a moving average when training or forecasting
// fails. It keeps no per-request state and is safe for concurrent use.
type Pipeline struct {
	cfg     Config
	builder *features.Builder
}

func NewPipeline(builder *features.Builder, cfg Config) *Pipeline {
	if cfg.TopFeatures <= 0 {
		cfg.TopFeatures = 10
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction >= 1 {
		cfg.TrainFraction = 0.7
	}
	return &Pipeline{cfg: cfg, builder: builder}
}

// Builder exposes the feature builder in use.
func (p *Pipeline) Builder() *features.Builder { return p.builder }

// MinDays returns the series length required under the current config.
func (p *Pipeline) MinDays() int {
	if p.cfg.EnsembleEnabled {
		return p.cfg.MinDays
	}
	return p.cfg.FallbackMinDays
}

// Run forecasts horizon days after the last observation. The only terminal
// errors are insufficient data, an invalid horizon, cancellation and a
// failed fallback.
func (p *Pipeline) Run(ctx context.Context, obs []models.Observation, horizon int) (Result, error) {
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}
	series, err := features.Normalize(obs, p.MinDays())
	if err != nil {
		return nil, err
	}
	if !p.cfg.EnsembleEnabled {
		return Fallback(series, horizon, ErrEnsembleDisabled)
	}

	res, err := p.runEnsemble(ctx, series, horizon)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	fb, fbErr := Fallback(series, horizon, err)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return fb, nil
}

// TrainSize is the number of leading days used for training: at least
// TrainFraction of the series, otherwise everything but the last horizon days.
func (p *Pipeline) TrainSize(n, horizon int) int {
	return max(n-horizon, int(float64(n)*p.cfg.TrainFraction))
}

func (p *Pipeline) runEnsemble(ctx context.Context, series features.Series, horizon int) (*EnsembleResult, error) {
	X := p.builder.Matrix(series)
	y := series.Values()
	trainSize := p.TrainSize(len(series), horizon)

	bundle, err := ensemble.Train(ctx, X[:trainSize], y[:trainSize], p.cfg.Ensemble)
	if err != nil {
		return nil, &StageError{Stage: StageTrain, Err: err}
	}

	residuals := make([]float64, 0, len(y)-trainSize)
	preds := make([]float64, 0, len(y)-trainSize)
	for i := trainSize; i < len(y); i++ {
		v, err := bundle.Predict(X[i])
		if err != nil {
			return nil, &StageError{Stage: StageTrain, Err: err}
		}
		preds = append(preds, v)
		residuals = append(residuals, y[i]-v)
	}
	mae, accuracy := heldOutMetrics(y[trainSize:], preds)

	points, vectors, err := Recursive(bundle, p.builder, series, horizon)
	if err != nil {
		return nil, &StageError{Stage: StageForecast, Err: err}
	}
	policy := applyBands(points, p.cfg.BandPolicy, residuals)

	return &EnsembleResult{
		Forecast: Forecast{
			Model:             EnsembleModel,
			MAE:               mae,
			Accuracy:          accuracy,
			BandPolicy:        policy,
			Points:            points,
			Explanations:      Explain(p.builder.Map(vectors[0]), points[0].Point, series.Last().Quantity),
			FeatureImportance: Importance(bundle.Models(), p.builder.FeatureNames(), p.cfg.TopFeatures),
		},
		Weights: bundle.Weights(),
	}, nil
}

// heldOutMetrics returns the mean absolute error and the coefficient of
// determination clipped at zero, as a percentage.
func heldOutMetrics(actual, pred []float64) (mae, accuracy float64) {
	if len(actual) == 0 {
		return 0, 0
	}
	var mean float64
	for i, a := range actual {
		mae += math.Abs(a - pred[i])
		mean += a
	}
	n := float64(len(actual))
	mae /= n
	mean /= n

	var ssRes, ssTot float64
	for i, a := range actual {
		ssRes += (a - pred[i]) * (a - pred[i])
		ssTot += (a - mean) * (a - mean)
	}
	var r2 float64
	switch {
	case ssTot > 0:
		r2 = 1 - ssRes/ssTot
	case ssRes == 0:
		r2 = 1
	}
	return mae, math.Max(r2, 0) * 100
}
