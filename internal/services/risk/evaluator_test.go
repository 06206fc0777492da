package risk

import (
	"testing"
	"time"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func flat(n int, point float64) []models.ForecastPoint {
	out := make([]models.ForecastPoint, n)
	for i := range out {
		out[i] = models.ForecastPoint{Point: point, Lower: point * 0.8, Upper: point * 1.3}
	}
	return out
}

func TestStockout(t *testing.T) {
	tests := []struct {
		name     string
		stock    float64
		points   []models.ForecastPoint
		score    float64
		level    models.RiskLevel
		days     int
		expected float64
	}{
		{"out of stock", 0, flat(7, 10), 100, models.RiskHigh, 1, 70},
		{"imminent", 20, flat(7, 10), 90, models.RiskHigh, 3, 70},
		{"soon", 40, flat(7, 10), 60, models.RiskMedium, 5, 70},
		{"sufficient", 1000, flat(7, 10), 70.0 / 1001 * 50, models.RiskLow, 0, 70},
		{"capped at fifty", 10, flat(12, 1), 50, models.RiskMedium, 0, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, days, expected := Stockout(tt.stock, tt.points)
			assert.InDelta(t, tt.score, r.Score, 1e-9)
			assert.Equal(t, tt.level, r.Level)
			assert.Equal(t, tt.days, days)
			assert.InDelta(t, tt.expected, expected, 1e-9)
		})
	}
}

func TestOverstock(t *testing.T) {
	p := models.Product{CurrentStock: 500, ReorderPoint: 20, OverstockLimit: 200}
	assert.Equal(t, 70.0, Overstock(p, flat(7, 10)).Score)
	assert.Equal(t, models.RiskMedium, Overstock(p, flat(7, 10)).Level)

	p.CurrentStock = 100
	assert.Equal(t, 30.0, Overstock(p, flat(7, 10)).Score)

	p.CurrentStock = 10
	r := Overstock(p, flat(7, 10))
	assert.Equal(t, 5.0, r.Score)
	assert.Equal(t, models.RiskLow, r.Level)
}

func TestEvaluateAndAlerts(t *testing.T) {
	p := models.Product{ID: 3, Name: "Unga 2kg", CurrentStock: 20, ReorderPoint: 30, OverstockLimit: 200}
	a := Evaluate(p, flat(7, 10), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, models.RiskHigh, a.Stockout.Level)
	assert.Equal(t, models.RiskLow, a.Overstock.Level)
	assert.Equal(t, "No expiry date set", a.Expiry.Reason)
	assert.Equal(t, 3, a.DaysToStockout)

	alerts := Alerts(p, a, "run-1")
	if assert.Len(t, alerts, 1) {
		assert.Equal(t, models.AlertStockout, alerts[0].AlertType)
		assert.Equal(t, "Stockout imminent", alerts[0].Message)
		assert.Equal(t, "run-1", alerts[0].RunID)
		assert.Equal(t, int64(3), alerts[0].ProductID)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}
	const day = 24 * time.Hour

	tests := []struct {
		name   string
		expiry *time.Time
		score  float64
		level  models.RiskLevel
		reason string
	}{
		{"no expiry date", nil, 0, models.RiskLow, "No expiry date set"},
		{"already expired", at(-2 * day), 100, models.RiskHigh, "Product expired"},
		{"expires now", at(0), 100, models.RiskHigh, "Product expired"},
		{"partial day rounds up", at(2 * time.Hour), 90, models.RiskHigh, "Expiring very soon in 1 days"},
		{"one week", at(7 * day), 90, models.RiskHigh, "Expiring very soon in 7 days"},
		{"just over a week", at(7*day + time.Hour), 60, models.RiskMedium, "Expiring soon in 8 days"},
		{"thirty days", at(30 * day), 60, models.RiskMedium, "Expiring soon in 30 days"},
		{"far off", at(90 * day), 20, models.RiskLow, "Safe, expires in 90 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Expiry(tt.expiry, now)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.level, r.Level)
			assert.Equal(t, tt.reason, r.Reason)
		})
	}
}

func TestAlertsIncludeExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 20)
	p := models.Product{ID: 8, Name: "Fresh milk 500ml", CurrentStock: 1000, ReorderPoint: 2000, OverstockLimit: 5000, ExpiryDate: &expiry}

	a := Evaluate(p, flat(7, 10), now)
	assert.Equal(t, models.RiskLow, a.Stockout.Level)
	assert.Equal(t, models.RiskLow, a.Overstock.Level)
	assert.Equal(t, models.RiskMedium, a.Expiry.Level)

	alerts := Alerts(p, a, "run-9")
	if assert.Len(t, alerts, 1) {
		assert.Equal(t, models.AlertExpiry, alerts[0].AlertType)
		assert.Equal(t, models.RiskMedium, alerts[0].Level)
		assert.Equal(t, 60.0, alerts[0].Score)
		assert.Equal(t, "Expiring soon in 20 days", alerts[0].Message)
		assert.Equal(t, "Fresh milk 500ml", alerts[0].Product)
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, models.RiskHigh, LevelFor(80))
	assert.Equal(t, models.RiskMedium, LevelFor(50))
	assert.Equal(t, models.RiskLow, LevelFor(49.9))
}
