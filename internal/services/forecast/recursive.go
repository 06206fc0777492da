package forecast

import (
	"fmt"
	"math"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/services/features"
)

// Predictor maps a feature row to a point estimate.
type Predictor interface {
	Predict(row []float64) (float64, error)
}

// Recursive forecasts horizon days after the end of series. Each day's
// clipped prediction is appended to the history that later days read their
// lag and rolling features from. It returns the points without bands and the
// feature vector of every forecast day.
func Recursive(p Predictor, b *features.Builder, series features.Series, horizon int) ([]models.ForecastPoint, []features.Vector, error) {
	if horizon < 1 {
		return nil, nil, ErrInvalidHorizon
	}
	if len(series) == 0 {
		return nil, nil, fmt.Errorf("forecast: empty series")
	}

	history := make([]float64, len(series), len(series)+horizon)
	copy(history, series.Values())
	last := series.Last().Date

	points := make([]models.ForecastPoint, 0, horizon)
	vectors := make([]features.Vector, 0, horizon)
	for i := 1; i <= horizon; i++ {
		date := last.AddDate(0, 0, i)
		row := b.Row(date, history)
		y, err := p.Predict(row)
		if err != nil {
			return nil, nil, fmt.Errorf("predict day %d: %w", i, err)
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, nil, fmt.Errorf("predict day %d: non-finite value", i)
		}
		y = math.Max(0, y)

		points = append(points, models.ForecastPoint{Date: date, Point: y})
		vectors = append(vectors, row)
		history = append(history, y)
	}
	return points, vectors, nil
}
