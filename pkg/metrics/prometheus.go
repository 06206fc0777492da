package metrics

import (
	"strconv"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ repository.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	alertsTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastMAE     *prometheus.GaugeVec
	lastAcc     *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_forecast_runs_total",
				Help: "Total number of forecast runs by model",
			},
			[]string{"model", "fallback"},
		),
		alertsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_risk_alerts_total",
				Help: "Total number of risk alerts raised",
			},
			[]string{"type", "level"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastMAE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "demandcast_forecast_mae",
				Help: "Held-out MAE of the latest run for a product",
			},
			[]string{"product"},
		),
		lastAcc: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "demandcast_forecast_accuracy_percent",
				Help: "Accuracy score of the latest run for a product",
			},
			[]string{"product"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun counts a completed forecast run.
func (r *Recorder) RecordRun(model string, fallback bool) {
	r.runsTotal.WithLabelValues(model, strconv.FormatBool(fallback)).Inc()
}

// RecordAlert counts a raised risk alert.
func (r *Recorder) RecordAlert(alertType models.AlertType, level models.RiskLevel) {
	r.alertsTotal.WithLabelValues(string(alertType), string(level)).Inc()
}

// RecordAccuracy sets the latest error gauges for a product.
func (r *Recorder) RecordAccuracy(productID int64, mae, accuracy float64) {
	p := strconv.FormatInt(productID, 10)
	r.lastMAE.WithLabelValues(p).Set(mae)
	r.lastAcc.WithLabelValues(p).Set(accuracy)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
