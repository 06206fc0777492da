package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	drepo "DemandCast/internal/domain/repository"
	"DemandCast/internal/service/ratelimit"
	"DemandCast/internal/services/features"
	"DemandCast/internal/usecase"
	xlogger "DemandCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	runErr     error
	latestErr  error
	enqueueErr error

	gotProduct int64
	gotHorizon int
	gotSource  string
}

func (f *fakeRunner) RunForecast(_ context.Context, productID int64, horizon int) (*models.ForecastRun, error) {
	f.gotProduct, f.gotHorizon = productID, horizon
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.ForecastRun{RunID: "17", ProductID: productID, Horizon: horizon, Model: "Ensemble(GBM+RF)"}, nil
}

func (f *fakeRunner) LatestForecast(_ context.Context, productID int64) (*models.ForecastRun, error) {
	f.gotProduct = productID
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return &models.ForecastRun{RunID: "9", ProductID: productID}, nil
}

func (f *fakeRunner) EnqueueForecast(_ context.Context, productID int64, horizon int, source string) error {
	f.gotProduct, f.gotHorizon, f.gotSource = productID, horizon, source
	return f.enqueueErr
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *ForecastEchoHandler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestRunForecastOK(t *testing.T) {
	runner := &fakeRunner{}
	h := NewForecastEchoHandler(xlogger.Nop(), runner, nil, 14)

	rec, env := serve(t, h, http.MethodPost, "/api/forecasts/run", `{"productId":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), runner.gotProduct)
	assert.Equal(t, 14, runner.gotHorizon, "default horizon")

	var run models.ForecastRun
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "17", run.RunID)
}

func TestRunForecastConfiguredDefaultHorizon(t *testing.T) {
	runner := &fakeRunner{}
	h := NewForecastEchoHandler(xlogger.Nop(), runner, nil, 30)

	rec, _ := serve(t, h, http.MethodPost, "/api/forecasts/run", `{"productId":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, runner.gotHorizon)
}

func TestRunForecastValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing product", `{"horizon":7}`},
		{"horizon too large", `{"productId":1,"horizon":91}`},
		{"negative product", `{"productId":-3}`},
		{"malformed", `{"productId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{}, nil, 14)
			rec, _ := serve(t, h, http.MethodPost, "/api/forecasts/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunForecastErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", fmt.Errorf("pipeline: %w", &features.InsufficientDataError{Have: 3, Need: 14}), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{"not found", fmt.Errorf("x: %w", drepo.ErrNotFound), http.StatusNotFound, "ERR_NOT_FOUND"},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{runErr: tt.err}, nil, 14)
			rec, env := serve(t, h, http.MethodPost, "/api/forecasts/run", `{"productId":2,"horizon":7}`)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, env))
			}
		})
	}
}

func TestRunForecastRateLimited(t *testing.T) {
	limiter := ratelimit.New(0.001, 1, 16, time.Minute)
	h := NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{}, limiter, 14)

	rec, _ := serve(t, h, http.MethodPost, "/api/forecasts/run", `{"productId":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := serve(t, h, http.MethodPost, "/api/forecasts/run", `{"productId":1}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, env))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestEnqueueForecast(t *testing.T) {
	runner := &fakeRunner{}
	h := NewForecastEchoHandler(xlogger.Nop(), runner, nil, 14)

	rec, env := serve(t, h, http.MethodPost, "/api/forecasts/enqueue", `{"productId":8,"horizon":30}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "api", runner.gotSource)
	assert.Equal(t, 30, runner.gotHorizon)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, true, body["queued"])
}

func TestEnqueueForecastWithoutQueue(t *testing.T) {
	h := NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{enqueueErr: usecase.ErrQueueDisabled}, nil, 14)
	rec, _ := serve(t, h, http.MethodPost, "/api/forecasts/enqueue", `{"productId":8}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLatestForecast(t *testing.T) {
	runner := &fakeRunner{}
	h := NewForecastEchoHandler(xlogger.Nop(), runner, nil, 14)

	rec, _ := serve(t, h, http.MethodGet, "/api/forecasts/12/latest", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), runner.gotProduct)

	runner.latestErr = fmt.Errorf("latest forecast: %w", drepo.ErrNotFound)
	rec, _ = serve(t, h, http.MethodGet, "/api/forecasts/12/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, h, http.MethodGet, "/api/forecasts/abc/latest", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "store", Check: func(context.Context) error { return nil }}
	h := NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{}, nil, 14, ok)
	rec, _ := serve(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}
	h = NewForecastEchoHandler(xlogger.Nop(), &fakeRunner{}, nil, 14, ok, down)
	rec, env := serve(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var checks map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &checks))
	assert.Equal(t, "ok", checks["store"])
	assert.Contains(t, checks["redis"], "refused")
}
