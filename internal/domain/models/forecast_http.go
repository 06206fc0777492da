package models

// Requests for forecast HTTP endpoints. Defined in domain for reuse by the queue job.

type RunForecastRequest struct {
	ProductID int64 `json:"productId" validate:"required,gte=1"`
	// Horizon 0 means the configured default.
	Horizon int `json:"horizon" validate:"omitempty,gte=1,lte=90"`
}

type LatestForecastRequest struct {
	ProductID int64 `param:"productId" validate:"required,gte=1"`
}

// ForecastJobPayload is the queued form of a forecast request.
type ForecastJobPayload struct {
	ProductID int64  `json:"productId"`
	Horizon   int    `json:"horizon"`
	Source    string `json:"source,omitempty"`
}
