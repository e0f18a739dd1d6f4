package utils

import (
	"time"

	"github.com/labstack/echo"
	"github.com/rs/zerolog"
)

// ZeroLogger logs one line per request once the response is written.
func ZeroLogger(log *zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			log.WithLevel(levelForStatus(res.Status)).
				Int("status", res.Status).
				Int64("elapsed_ms", time.Since(start).Milliseconds()).
				Str("id", id).
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("client_ip", c.RealIP()).
				Msg("request")

			return nil
		}
	}
}

func levelForStatus(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	case status >= 300:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
