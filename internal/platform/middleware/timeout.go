package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
)

// RequestTimeout gives each request a context deadline and answers 504 when
// the handler overruns it. Websocket upgrades are long-lived and exempt; a
// zero timeout disables the middleware.
func RequestTimeout(timeout time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || c.IsWebSocket() {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			var err error
			select {
			case err = <-done:
				return err
			case <-ctx.Done():
				err = ctx.Err()
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			rid, _ := c.Get("request_id").(string)
			logger.Warn().
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Dur("timeout", timeout).
				Msg("request timed out")

			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout,
				apperr.NewResponse(http.StatusGatewayTimeout, "request processing exceeded the allowed time limit"))
		}
	}
}
