package kafka

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorContains(t, err, "brokers")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithRequiredAcks(2))
	assert.ErrorContains(t, err, "required acks")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli"))
	assert.ErrorContains(t, err, "compression")
}

func TestNewProducerSettings(t *testing.T) {
	p, err := NewProducer(
		WithBrokers([]string{"localhost:9092"}),
		WithHashByKey(true),
		WithCompression("zstd"),
		WithBatchSize(0),
		WithMaxAttempts(5),
	)
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, kafka.Zstd, p.writer.Compression)
	assert.Equal(t, 100, p.writer.BatchSize, "zero keeps the default")
	assert.Equal(t, 5, p.writer.MaxAttempts)
	assert.Nil(t, p.writer.Completion)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	b, err = encodeValue(struct {
		ProductID int64 `json:"productId"`
	}{7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":7}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := parseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, kafka.Compression(0), c)

	c, err = parseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, kafka.Lz4, c)
}

func TestProducerMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newProducerMetrics(reg)
	second := newProducerMetrics(reg)
	assert.Same(t, first.messages, second.messages)

	second.observe("runs", "gzip", 10, 0, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.messages.WithLabelValues("runs", "gzip", "ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(first.bytes.WithLabelValues("runs", "gzip")))
}
