package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger tags each request with an X-Request-ID (reusing the
// client's when present) and logs one line per request once it completes.
func RequestLogger() echo.MiddlewareFunc {
	log := logrus.WithField("component", "http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}

			fields := logrus.Fields{
				"request_id": rid,
				"method":     req.Method,
				"path":       c.Path(),
				"uri":        req.RequestURI,
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			}
			if id, ok := UserID(c); ok {
				fields["user_id"] = id
			}
			entry := log.WithFields(fields)
			switch {
			case c.Response().Status >= 500:
				entry.Error("request")
			case c.Response().Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
