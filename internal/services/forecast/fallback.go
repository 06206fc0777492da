package forecast

import (
	"fmt"
	"math"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/services/features"
)

const (
	FallbackModel    = "MovingAverage(Fallback)"
	FallbackAccuracy = 50.0
	MsgFallback      = "Fallback average used"

	fallbackWindow   = 7
	fallbackLowerMul = 0.7
	fallbackUpperMul = 1.3
)

// Fallback forecasts a flat line at the mean of the last seven real days.
func Fallback(series features.Series, horizon int, cause error) (*FallbackResult, error) {
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("fallback: empty series")
	}

	start := len(series) - fallbackWindow
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, p := range series[start:] {
		sum += p.Quantity
	}
	avg := sum / float64(len(series)-start)
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return nil, fmt.Errorf("fallback: non-finite average")
	}
	avg = math.Max(0, avg)
	last := series.Last()

	points := make([]models.ForecastPoint, horizon)
	for i := range points {
		points[i] = models.ForecastPoint{Date: last.Date.AddDate(0, 0, i+1), Point: avg}
	}
	multiplyBands(points, fallbackLowerMul, fallbackUpperMul)

	return &FallbackResult{
		Forecast: Forecast{
			Model:             FallbackModel,
			MAE:               math.Abs(avg - last.Quantity),
			Accuracy:          FallbackAccuracy,
			BandPolicy:        BandFixed,
			Points:            points,
			Explanations:      []string{MsgFallback},
			FeatureImportance: map[string]float64{},
		},
		Cause: cause,
	}, nil
}
