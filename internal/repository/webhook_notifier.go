package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	xhttp "DemandCast/pkg/http"
	applogger "DemandCast/pkg/logger"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker in front of the alert webhook.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// alertPayload is the body accepted by the inventory alerts endpoint.
type alertPayload struct {
	ProductID int64   `json:"productId"`
	AlertType string  `json:"alertType"`
	Message   string  `json:"message"`
	Product   string  `json:"product,omitempty"`
	Severity  string  `json:"severity"`
	Score     float64 `json:"score"`
	RunID     string  `json:"runId,omitempty"`
}

// WebhookNotifier POSTs risk alerts to the inventory service. Consecutive
// server-side failures open the breaker and later calls fail fast.
type WebhookNotifier struct {
	client  *xhttp.Client
	url     string
	breaker *gobreaker.CircuitBreaker[struct{}]
	l       *applogger.Logger
}

var _ domrepo.Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(client *xhttp.Client, url string, cfg BreakerConfig, l *applogger.Logger) *WebhookNotifier {
	n := &WebhookNotifier{client: client, url: url, l: l}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// a rejected payload says nothing about the endpoint's health
		IsSuccessful: func(err error) bool {
			var se *xhttp.StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	return n
}

// NotifyRun is a no-op; the webhook only accepts alerts.
func (n *WebhookNotifier) NotifyRun(context.Context, models.RunEvent) error {
	return nil
}

func (n *WebhookNotifier) NotifyAlert(ctx context.Context, alert models.RiskAlert) error {
	body := alertPayload{
		ProductID: alert.ProductID,
		AlertType: string(alert.AlertType),
		Message:   alert.Message,
		Product:   alert.Product,
		Severity:  string(alert.Level),
		Score:     alert.Score,
		RunID:     alert.RunID,
	}
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.client.PostJSON(ctx, n.url, body, nil)
	})
	if err != nil {
		return fmt.Errorf("alert webhook: %w", err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (n *WebhookNotifier) State() gobreaker.State {
	return n.breaker.State()
}
