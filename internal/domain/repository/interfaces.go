package repository

import (
	"context"
	"errors"

	"DemandCast/internal/domain/models"
)

// ErrNotFound is returned when a product or forecast run does not exist.
var ErrNotFound = errors.New("not found")

// SalesSource reads the inventory data the forecaster consumes.
type SalesSource interface {
	FetchObservations(ctx context.Context, productID int64) ([]models.Observation, error)
	GetProduct(ctx context.Context, productID int64) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type ForecastStore interface {
	Init(ctx context.Context) error // ensure tables
	SaveRun(ctx context.Context, run *models.ForecastRun) (string, error)
	LatestRun(ctx context.Context, productID int64) (*models.ForecastRun, error)
	Health(ctx context.Context) error
	Close() error
}

// Storage is a backend that serves both sides of the pipeline.
type Storage interface {
	SalesSource
	ForecastStore
}

type Notifier interface {
	NotifyRun(ctx context.Context, ev models.RunEvent) error
	NotifyAlert(ctx context.Context, alert models.RiskAlert) error
}

type Metrics interface {
	RecordRun(model string, fallback bool)
	RecordAlert(alertType models.AlertType, level models.RiskLevel)
	RecordAccuracy(productID int64, mae, accuracy float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
