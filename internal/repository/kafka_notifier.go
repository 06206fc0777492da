package repository

import (
	"context"
	"strconv"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
)

// eventPublisher is the subset of pkg/kafka.Producer the notifier needs.
type eventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, eventType string, value interface{}) error
}

// Event types carried in the Kafka event-type header.
const (
	EventRunCompleted = "forecast.run.completed"
	EventAlertRaised  = "risk.alert.raised"
)

// KafkaNotifier publishes run and alert events keyed by product id, so
// events for one product stay ordered on one partition.
type KafkaNotifier struct {
	producer    eventPublisher
	runsTopic   string
	alertsTopic string
}

var _ domrepo.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(producer eventPublisher, runsTopic, alertsTopic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, runsTopic: runsTopic, alertsTopic: alertsTopic}
}

func productKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func (n *KafkaNotifier) NotifyRun(ctx context.Context, ev models.RunEvent) error {
	return n.producer.Publish(ctx, n.runsTopic, productKey(ev.ProductID), EventRunCompleted, ev)
}

func (n *KafkaNotifier) NotifyAlert(ctx context.Context, alert models.RiskAlert) error {
	return n.producer.Publish(ctx, n.alertsTopic, productKey(alert.ProductID), EventAlertRaised, alert)
}
