package middleware

import (
	"time"

	"DemandCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one entry per request: error level for 5xx, debug
// otherwise. It renders handler errors itself so the logged status is final.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			fields := []logger.Field{
				logger.String("request_id", requestID(c)),
				logger.String("method", c.Request().Method),
				logger.String("route", routeOf(c)),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Int64("bytes", res.Size),
				logger.Duration("latency", time.Since(start)),
			}
			if res.Status < 500 {
				l.Debug("http request", fields...)
				return nil
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}
			l.Error("http request failed", fields...)
			return nil
		}
	}
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
