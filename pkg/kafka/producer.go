package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// HeaderEventType names the event carried by a message.
const HeaderEventType = "event-type"

// Producer publishes JSON events to Kafka.
type Producer struct {
	writer  *kafka.Writer
	codec   string
	metrics *producerMetrics
}

// NewProducer builds a writer from opts. It does not dial; connection
// errors surface on the first Publish.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if cfg.RequiredAcks < -1 || cfg.RequiredAcks > 1 {
		return nil, fmt.Errorf("kafka: required acks must be -1, 0 or 1, got %d", cfg.RequiredAcks)
	}
	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}

	p := &Producer{codec: cfg.Compression, metrics: newProducerMetrics(prometheus.DefaultRegisterer)}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	if cfg.Async {
		p.writer.Completion = func(msgs []kafka.Message, err error) {
			for _, m := range msgs {
				p.metrics.observe(m.Topic, p.codec, len(m.Value), 0, err)
			}
		}
	}
	return p, nil
}

// Publish sends one event. Values other than bytes or strings are
// JSON-encoded. eventType is attached as a header when non-empty.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, eventType string, value interface{}) error {
	body, err := encodeValue(value)
	if err != nil {
		return err
	}
	msg := kafka.Message{Topic: topic, Key: key, Value: body, Time: time.Now()}
	if eventType != "" {
		msg.Headers = []kafka.Header{{Key: HeaderEventType, Value: []byte(eventType)}}
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	if !p.writer.Async || err != nil {
		p.metrics.observe(topic, p.codec, len(body), time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode value: %w", err)
	}
	return b, nil
}

func parseCompression(codec string) (kafka.Compression, error) {
	switch codec {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression %q", codec)
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// newProducerMetrics registers the collectors on reg, reusing collectors a
// previous producer already registered.
func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	return &producerMetrics{
		messages: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demandcast",
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Events published to Kafka by topic and result.",
		}, []string{"topic", "compression", "result"})),
		bytes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demandcast",
			Subsystem: "kafka",
			Name:      "bytes_total",
			Help:      "Event payload bytes published to Kafka.",
		}, []string{"topic", "compression"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "demandcast",
			Subsystem: "kafka",
			Name:      "publish_seconds",
			Help:      "Synchronous publish latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *producerMetrics) observe(topic, codec string, size int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, codec, result).Inc()
	if err == nil {
		m.bytes.WithLabelValues(topic, codec).Add(float64(size))
	}
	if took > 0 {
		m.latency.WithLabelValues(topic).Observe(took.Seconds())
	}
}
