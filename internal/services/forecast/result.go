package forecast

import (
	"errors"
	"fmt"

	"DemandCast/internal/domain/models"
)

// Stage names a step of the pipeline that can fail over to the fallback.
type Stage string

const (
	StageTrain    Stage = "train"
	StageForecast Stage = "forecast"
)

// StageError wraps a training or forecasting failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

var (
	ErrInvalidHorizon   = errors.New("forecast: horizon must be at least 1")
	ErrEnsembleDisabled = errors.New("forecast: ensemble training disabled")
)

// Forecast is the content shared by every pipeline outcome.
type Forecast struct {
	Model             string
	MAE               float64
	Accuracy          float64
	BandPolicy        BandPolicy
	Points            []models.ForecastPoint
	Explanations      []string
	FeatureImportance map[string]float64
}

// Result is either an *EnsembleResult or a *FallbackResult.
type Result interface {
	Output() *Forecast
	isResult()
}

// EnsembleResult is produced when training and forecasting both succeed.
type EnsembleResult struct {
	Forecast
	Weights map[string]float64
}

func (r *EnsembleResult) Output() *Forecast { return &r.Forecast }
func (*EnsembleResult) isResult()           {}

// FallbackResult is produced by the moving-average strategy. Cause is the
// error that triggered it.
type FallbackResult struct {
	Forecast
	Cause error
}

func (r *FallbackResult) Output() *Forecast { return &r.Forecast }
func (*FallbackResult) isResult()           {}
