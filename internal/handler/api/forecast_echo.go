package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"DemandCast/internal/domain/models"
	drepo "DemandCast/internal/domain/repository"
	"DemandCast/internal/service/ratelimit"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecast"
	"DemandCast/internal/usecase"
	xhttp "DemandCast/pkg/http"
	xlogger "DemandCast/pkg/logger"
	"DemandCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ForecastRunner is the slice of usecase.ForecastService the handler needs.
type ForecastRunner interface {
	RunForecast(ctx context.Context, productID int64, horizon int) (*models.ForecastRun, error)
	LatestForecast(ctx context.Context, productID int64) (*models.ForecastRun, error)
	EnqueueForecast(ctx context.Context, productID int64, horizon int, source string) error
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ForecastEchoHandler serves the forecast API.
type ForecastEchoHandler struct {
	svc            ForecastRunner
	limiter        *ratelimit.Limiter
	defaultHorizon int
	checks         []HealthCheck
	logger         *xlogger.Logger
}

var _ ForecastRunner = (*usecase.ForecastService)(nil)

// NewForecastEchoHandler builds the handler. Requests without a horizon use
// defaultHorizon; a nil limiter disables rate limiting.
func NewForecastEchoHandler(logger *xlogger.Logger, svc ForecastRunner, limiter *ratelimit.Limiter, defaultHorizon int, checks ...HealthCheck) *ForecastEchoHandler {
	if defaultHorizon < 1 {
		defaultHorizon = 14
	}
	return &ForecastEchoHandler{svc: svc, limiter: limiter, defaultHorizon: defaultHorizon, checks: checks, logger: logger}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/forecasts")
	g.POST("/run", h.Run)
	g.POST("/enqueue", h.Enqueue)
	g.GET("/:productId/latest", h.Latest)
}

func (h *ForecastEchoHandler) Run(c echo.Context) error {
	if h.limiter != nil {
		key := c.RealIP()
		if !h.limiter.Allow(key) {
			wait := h.limiter.RetryAfter(key)
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many forecast requests"))
		}
	}

	req := &models.RunForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Horizon == 0 {
		req.Horizon = h.defaultHorizon
	}

	run, err := h.svc.RunForecast(c.Request().Context(), req.ProductID, req.Horizon)
	if err != nil {
		return h.fail(c, "run forecast", req.ProductID, err)
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *ForecastEchoHandler) Enqueue(c echo.Context) error {
	req := &models.RunForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Horizon == 0 {
		req.Horizon = h.defaultHorizon
	}
	if err := h.svc.EnqueueForecast(c.Request().Context(), req.ProductID, req.Horizon, "api"); err != nil {
		return h.fail(c, "enqueue forecast", req.ProductID, err)
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{"queued": true, "productId": req.ProductID})
}

func (h *ForecastEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.svc.LatestForecast(c.Request().Context(), req.ProductID)
	if err != nil {
		return h.fail(c, "latest forecast", req.ProductID, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, run)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(c.Request().Context()); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}
	return xhttp.DataResponse(c, status, results)
}

func (h *ForecastEchoHandler) fail(c echo.Context, op string, productID int64, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Int64("product_id", productID), xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Int64("product_id", productID), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain failures onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var insufficient *features.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough sales history to forecast").
			WithParam("have", insufficient.Have).
			WithParam("need", insufficient.Need).
			WithError(err)
	case errors.Is(err, features.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough sales history to forecast").WithError(err)
	case errors.Is(err, forecast.ErrInvalidHorizon):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, drepo.ErrNotFound):
		return xhttp.NotFoundError("forecast not found").WithError(err)
	case errors.Is(err, usecase.ErrQueueDisabled), errors.Is(err, queue.ErrQueueFull),
		errors.Is(err, queue.ErrNotRunning):
		return xhttp.ServiceUnavailableError("forecast queue unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("forecast timed out").WithError(err)
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}
