package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"DemandCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.POST("/echo", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
}

func startServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{
		WithHost("127.0.0.1"),
		WithPort(0),
		WithRegisterer(prometheus.NewRegistry()),
		WithMetricsPath(""),
	}, opts...)
	s := NewServer(logger.Nop(), []Handler{pingHandler{}, nil}, opts...)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestServerServesRoutes(t *testing.T) {
	s := startServer(t, WithCORS(true, "http://dashboard"))

	req, err := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://dashboard", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get(echo.HeaderXRequestID))
}

func TestServerBodyLimit(t *testing.T) {
	s := startServer(t, WithBodyLimit("1K"))

	resp, err := http.Post("http://"+s.Addr()+"/echo", "application/json", strings.NewReader(strings.Repeat("x", 4096)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	s := startServer(t)
	_, port, _ := strings.Cut(s.Addr(), ":")

	other := NewServer(logger.Nop(), nil, WithHost("127.0.0.1"), WithRegisterer(prometheus.NewRegistry()), WithMetricsPath(""))
	other.config.Port, _ = strconv.Atoi(port)
	assert.Error(t, other.Start())
}
