package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

// DeniedRequest describes a request refused with 401, 403 or 429.
type DeniedRequest struct {
	UserID     string
	Username   string
	Status     int
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	RequestID  string
	Reason     string
	OccurredAt time.Time
}

// DeniedRecorder persists denied requests, typically as security events.
type DeniedRecorder interface {
	RecordDenied(ctx context.Context, d DeniedRequest) error
}

// DeniedRecorderFunc adapts a function to DeniedRecorder.
type DeniedRecorderFunc func(ctx context.Context, d DeniedRequest) error

func (f DeniedRecorderFunc) RecordDenied(ctx context.Context, d DeniedRequest) error {
	return f(ctx, d)
}

// DeniedAudit reports every 401, 403 and 429 outcome to recorder and logs it.
// Recorder failures are logged and never change the response.
func DeniedAudit(logger zerolog.Logger, recorder DeniedRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			reason := ""
			if err != nil {
				var body apperr.ErrorResponse
				status, body = apperr.ToResponse(err)
				reason = body.Message
			}
			if !isDenied(status) {
				return err
			}

			req := c.Request()
			d := DeniedRequest{
				Status:     status,
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Reason:     reason,
				OccurredAt: time.Now().UTC(),
			}
			d.RequestID, _ = c.Get("request_id").(string)
			if p := auth.PrincipalFromContext(req.Context()); p != nil {
				d.UserID = p.ID.String()
				d.Username = p.Username
			}

			logger.Warn().
				Str("type", "access_denied").
				Str("request_id", d.RequestID).
				Str("user_id", d.UserID).
				Int("status", d.Status).
				Str("method", d.Method).
				Str("path", d.Path).
				Str("remote_ip", d.IPAddress).
				Str("reason", d.Reason).
				Msg("request denied")

			if recorder != nil {
				// The request context may already be cancelled by a client
				// disconnect; the record should still be written.
				ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), 5*time.Second)
				if recErr := recorder.RecordDenied(ctx, d); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", d.RequestID).Msg("failed to record denied request")
				}
				cancel()
			}
			return err
		}
	}
}

func isDenied(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests
}
