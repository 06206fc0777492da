package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "INFO", Format: "json", Output: path, Service: "demandcast"})
	require.NoError(t, err)

	l.With(String("component", "forecast")).Info("run finished",
		Int64("product_id", 7),
		Float64("mae", 1.25),
		Bool("fallback", false),
		Duration("elapsed_ms", 1500*time.Millisecond),
		Strings("models", []string{"gbm", "rf"}),
		Error(errors.New("boom")),
	)
	l.Debug("dropped below level")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "run finished", entry["message"])
	assert.Equal(t, "forecast", entry["component"])
	assert.Equal(t, 7.0, entry["product_id"])
	assert.Equal(t, 1.25, entry["mae"])
	assert.Equal(t, false, entry["fallback"])
	assert.Equal(t, 1500.0, entry["elapsed_ms"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "demandcast", entry["service"])
	assert.Equal(t, []any{"gbm", "rf"}, entry["models"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop().With(Int("worker", 1))
	assert.NotPanics(t, func() {
		l.Error("ignored", Error(nil), Any("payload", map[string]int{"a": 1}))
	})
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
