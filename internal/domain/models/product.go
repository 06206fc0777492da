package models

import "time"

// Product carries the stock levels used for risk evaluation.
type Product struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	CurrentStock   float64 `json:"currentStock"`
	ReorderPoint   float64 `json:"reorderPoint"`
	OverstockLimit float64 `json:"overStockLimit"`
	// ExpiryDate is nil for non-perishable stock.
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Risk is a single scored risk dimension.
type Risk struct {
	Level  RiskLevel `json:"level"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason"`
}

// RiskAssessment combines stockout, overstock and expiry risk for one
// forecast.
type RiskAssessment struct {
	Stockout       Risk    `json:"stockout"`
	Overstock      Risk    `json:"overstock"`
	Expiry         Risk    `json:"expiry"`
	DaysToStockout int     `json:"daysToStockout,omitempty"`
	ExpectedDemand float64 `json:"expectedDemand"`
}

type AlertType string

const (
	AlertStockout  AlertType = "STOCKOUT_RISK"
	AlertOverstock AlertType = "OVERSTOCK_RISK"
	AlertExpiry    AlertType = "EXPIRY"
)

// RiskAlert is pushed to subscribers when a risk reaches MEDIUM or HIGH.
type RiskAlert struct {
	ProductID int64     `json:"productId"`
	Product   string    `json:"product,omitempty"`
	AlertType AlertType `json:"alertType"`
	Level     RiskLevel `json:"level"`
	Score     float64   `json:"score"`
	Message   string    `json:"message"`
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunEvent announces a persisted forecast run.
type RunEvent struct {
	RunID       string    `json:"runId"`
	ProductID   int64     `json:"productId"`
	Model       string    `json:"model"`
	Horizon     int       `json:"horizon"`
	Fallback    bool      `json:"fallback"`
	TotalDemand float64   `json:"totalDemand"`
	CreatedAt   time.Time `json:"createdAt"`
}
