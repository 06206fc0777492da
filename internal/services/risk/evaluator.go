package risk

import (
	"fmt"
	"math"
	"time"

	"DemandCast/internal/domain/models"
)

const (
	highThreshold   = 80
	mediumThreshold = 50

	imminentDays = 3
	soonDays     = 7

	expiringVerySoonDays = 7
	expiringSoonDays     = 30
)

// LevelFor maps a 0-100 score to a risk level.
func LevelFor(score float64) models.RiskLevel {
	switch {
	case score >= highThreshold:
		return models.RiskHigh
	case score >= mediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Evaluate scores stockout and overstock risk for product against the
// forecast bands, and expiry risk as of now.
func Evaluate(product models.Product, points []models.ForecastPoint, now time.Time) models.RiskAssessment {
	stockout, days, expected := Stockout(product.CurrentStock, points)
	return models.RiskAssessment{
		Stockout:       stockout,
		Overstock:      Overstock(product, points),
		Expiry:         Expiry(product.ExpiryDate, now),
		DaysToStockout: days,
		ExpectedDemand: expected,
	}
}

// Stockout walks cumulative lower bounds until they cover the stock.
// days is 0 when stock outlasts the horizon.
func Stockout(stock float64, points []models.ForecastPoint) (r models.Risk, days int, expected float64) {
	var cumLower float64
	for i, p := range points {
		cumLower += p.Lower
		expected += p.Point
		if days == 0 && cumLower >= stock {
			days = i + 1
		}
	}

	switch {
	case stock <= 0:
		r = models.Risk{Score: 100, Reason: "Already out of stock"}
	case days > 0 && days <= imminentDays:
		r = models.Risk{Score: 90, Reason: "Stockout imminent"}
	case days > 0 && days <= soonDays:
		r = models.Risk{Score: 60, Reason: "Stock likely to run low soon"}
	default:
		r = models.Risk{
			Score:  math.Min(50, expected/(stock+1)*50),
			Reason: "Stock sufficient with minor uncertainty",
		}
	}
	r.Level = LevelFor(r.Score)
	return r, days, expected
}

// Overstock flags stock well above the optimistic demand total.
func Overstock(product models.Product, points []models.ForecastPoint) models.Risk {
	var upper float64
	for _, p := range points {
		upper += p.Upper
	}

	var r models.Risk
	switch {
	case product.CurrentStock > product.OverstockLimit && upper < product.CurrentStock*0.5:
		r = models.Risk{Score: 70, Reason: "Overstock risk: stock significantly higher than expected demand"}
	case product.CurrentStock > product.ReorderPoint:
		r = models.Risk{Score: 30, Reason: "Slight overstock risk"}
	default:
		r = models.Risk{Score: 5, Reason: "Stock within safe range"}
	}
	r.Level = LevelFor(r.Score)
	return r
}

// Expiry scores the days left until expiry, rounded up. Products without
// an expiry date are LOW.
func Expiry(expiry *time.Time, now time.Time) models.Risk {
	if expiry == nil {
		return models.Risk{Level: models.RiskLow, Reason: "No expiry date set"}
	}
	left := int(math.Ceil(expiry.Sub(now).Hours() / 24))

	var r models.Risk
	switch {
	case left <= 0:
		r = models.Risk{Score: 100, Reason: "Product expired"}
	case left <= expiringVerySoonDays:
		r = models.Risk{Score: 90, Reason: fmt.Sprintf("Expiring very soon in %d days", left)}
	case left <= expiringSoonDays:
		r = models.Risk{Score: 60, Reason: fmt.Sprintf("Expiring soon in %d days", left)}
	default:
		r = models.Risk{Score: 20, Reason: fmt.Sprintf("Safe, expires in %d days", left)}
	}
	r.Level = LevelFor(r.Score)
	return r
}

// Alerts returns one alert per risk dimension at MEDIUM or above.
func Alerts(product models.Product, a models.RiskAssessment, runID string) []models.RiskAlert {
	dims := []struct {
		typ  models.AlertType
		risk models.Risk
	}{
		{models.AlertStockout, a.Stockout},
		{models.AlertOverstock, a.Overstock},
		{models.AlertExpiry, a.Expiry},
	}

	var out []models.RiskAlert
	for _, d := range dims {
		if d.risk.Level == "" || d.risk.Level == models.RiskLow {
			continue
		}
		out = append(out, models.RiskAlert{
			ProductID: product.ID,
			Product:   product.Name,
			AlertType: d.typ,
			Level:     d.risk.Level,
			Score:     d.risk.Score,
			Message:   d.risk.Reason,
			RunID:     runID,
		})
	}
	return out
}
