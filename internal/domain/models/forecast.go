package models

import "time"

// Observation is one raw sales event for a product.
type Observation struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// ForecastPoint is the prediction for a single future day.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// ForecastRun is a completed forecast as it is persisted and served.
type ForecastRun struct {
	RunID             string             `json:"runId"`
	ProductID         int64              `json:"productId"`
	Model             string             `json:"model"`
	Horizon           int                `json:"horizon"`
	MAE               float64            `json:"mae"`
	Accuracy          float64            `json:"accuracy"`
	BandPolicy        string             `json:"bandPolicy"`
	Fallback          bool               `json:"fallback"`
	FallbackCause     string             `json:"fallbackCause,omitempty"`
	Points            []ForecastPoint    `json:"points"`
	Explanations      []string           `json:"explanations"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	Risk              *RiskAssessment    `json:"risk,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// TotalDemand sums the point estimates over the horizon.
func (r *ForecastRun) TotalDemand() float64 {
	var total float64
	for _, p := range r.Points {
		total += p.Point
	}
	return total
}
