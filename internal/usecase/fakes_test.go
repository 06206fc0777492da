package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/repository"
	"DemandCast/internal/services/ensemble"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecast"
	applogger "DemandCast/pkg/logger"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func weeklySales(days int) []models.Observation {
	out := make([]models.Observation, days)
	for i := range out {
		out[i] = models.Observation{Date: day0.AddDate(0, 0, i), Quantity: float64(10 + (i%7)*2)}
	}
	return out
}

func testPipeline(ensembleEnabled bool) *forecast.Pipeline {
	cfg := forecast.DefaultConfig()
	cfg.EnsembleEnabled = ensembleEnabled
	cfg.Ensemble = ensemble.Options{
		Boosting:           ensemble.BoostingParams{Rounds: 15, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1},
		Forest:             ensemble.ForestParams{Trees: 8, MaxDepth: 5, MinSamplesLeaf: 1, Seed: 7},
		ValidationFraction: 0.3,
	}
	return forecast.NewPipeline(features.NewBuilder(features.Kenya()), cfg)
}

type fakeNotifier struct {
	mu     sync.Mutex
	runs   []models.RunEvent
	alerts []models.RiskAlert
	err    error
}

func (f *fakeNotifier) NotifyRun(_ context.Context, ev models.RunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, ev)
	return f.err
}

func (f *fakeNotifier) NotifyAlert(_ context.Context, a models.RiskAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

type fakeMetrics struct {
	mu     sync.Mutex
	runs   []string
	alerts int
	errors []string
}

func (f *fakeMetrics) RecordRun(model string, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, model)
}

func (f *fakeMetrics) RecordAlert(models.AlertType, models.RiskLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
}

func (f *fakeMetrics) RecordAccuracy(int64, float64, float64) {}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, kind)
}

func (f *fakeMetrics) RecordLatency(string, float64) {}

type failingStore struct {
	*repository.MemoryStore
}

func (failingStore) SaveRun(context.Context, *models.ForecastRun) (string, error) {
	return "", errors.New("disk full")
}

type publishedMessage struct {
	Type    string
	Payload models.ForecastJobPayload
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var p models.ForecastJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, publishedMessage{Type: msgType, Payload: p})
	return nil
}

func (q *fakeQueue) published() []publishedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]publishedMessage(nil), q.msgs...)
}

type fixture struct {
	store    *repository.MemoryStore
	notifier *fakeNotifier
	metrics  *fakeMetrics
	queue    *fakeQueue
	svc      *ForecastService
}

func newFixture(ensembleEnabled bool) *fixture {
	f := &fixture{
		store:    repository.NewMemoryStore(),
		notifier: &fakeNotifier{},
		metrics:  &fakeMetrics{},
		queue:    &fakeQueue{},
	}
	f.svc = NewForecastService(f.store, f.store, testPipeline(ensembleEnabled), f.notifier, f.metrics,
		applogger.Nop(), WithQueue(f.queue), WithMaxHorizon(30))
	return f
}
