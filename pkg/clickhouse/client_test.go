package clickhouse

import (
	"context"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptionsNative(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch"),
		WithDatabase("demandcast"),
		WithCredentials("", "secret"),
		WithTimeouts(0, 3*time.Second),
	} {
		opt(cfg)
	}

	opts := buildOptions(cfg)
	assert.Equal(t, []string{"ch:9000"}, opts.Addr)
	assert.Equal(t, ch.Auth{Database: "demandcast", Username: "default", Password: "secret"}, opts.Auth)
	assert.Equal(t, ch.Native, opts.Protocol)
	assert.Equal(t, 5*time.Second, opts.DialTimeout, "zero keeps the default")
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
	assert.Nil(t, opts.Compression)
	assert.Empty(t, opts.Settings)
}

func TestBuildOptionsSettings(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch"),
		WithPort(8123),
		WithHTTP(true),
		WithCompression(true),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}

	opts := buildOptions(cfg)
	assert.Equal(t, []string{"ch:8123"}, opts.Addr)
	assert.Equal(t, ch.HTTP, opts.Protocol)
	assert.Equal(t, ch.CompressionLZ4, opts.Compression.Method)
	assert.Equal(t, ch.Settings{"max_execution_time": 30, "async_insert": 1, "wait_for_async_insert": 1}, opts.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(context.Background())
	assert.ErrorContains(t, err, "host is required")
}
