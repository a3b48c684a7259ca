package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLog logs one line per request with method, route, status and
// latency.  Errors returned by handlers are passed on to Echo's error
// handler after being logged.
func RequestLog(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("user_id", userID(c)),
			}
			if err != nil {
				log.Warn("request", append(fields, zap.Error(err))...)
			} else {
				log.Info("request", fields...)
			}
			return nil
		}
	}
}
