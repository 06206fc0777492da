package server

import (
	"context"
	"testing"
	"time"

	"DemandCast/internal/handler/ws"
	"DemandCast/pkg/config"
	xhttp "DemandCast/pkg/http"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppRunsUntilContextDone(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	cfg.Server.ShutdownTimeout = time.Second

	l := applogger.Nop()
	srv := xhttp.NewServer(l, nil,
		xhttp.WithHost("127.0.0.1"),
		xhttp.WithPort(0),
		xhttp.WithRegisterer(prometheus.NewRegistry()),
		xhttp.WithMetricsPath(""))
	q := queue.NewLocalQueue(l, &queue.QueueConfig{Workers: 1})

	var closed []string
	app := New(cfg, l, srv,
		WithHub(ws.NewHub(l)),
		WithQueue(q),
		WithCloser("first", func() error { closed = append(closed, "first"); return nil }),
		WithCloser("second", func() error { closed = append(closed, "second"); return nil }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"second", "first"}, closed)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}
