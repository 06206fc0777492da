package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("svc")
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.NotEmpty(t, cfg.CollectorEndpoint)
	assert.InDelta(t, 1.0, cfg.SamplingRate, 0)
}

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes(12, 7)
	require.Len(t, attrs, 2)
	assert.Equal(t, AttrProductID, attrs[0].Key)
	assert.Equal(t, int64(12), attrs[0].Value.AsInt64())
	assert.Equal(t, int64(7), attrs[1].Value.AsInt64())

	res := ResultAttributes("Ensemble(GBM+RF)", false, 1.25)
	require.Len(t, res, 3)
	assert.Equal(t, "Ensemble(GBM+RF)", res[0].Value.AsString())
}

func TestSpanRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "forecast.run", RunAttributes(1, 14)...)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "forecast.run", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}

func TestShutdownNil(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background(), nil))
}
