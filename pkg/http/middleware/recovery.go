package middleware

import (
	"DemandCast/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Recover converts handler panics into 500 responses and logs the stack
// once through l instead of echo's default stderr printer.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("panic recovered",
				logger.String("route", routeOf(c)),
				logger.String("request_id", requestID(c)),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	})
}
