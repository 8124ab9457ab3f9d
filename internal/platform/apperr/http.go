package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response codes rendered in ErrorResponse.Code.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "RESOURCE_NOT_FOUND"
	CodeForbidden       = "INSUFFICIENT_PERMISSIONS"
	CodeUnauthenticated = "INVALID_TOKEN"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeTimeout         = "REQUEST_TIMEOUT"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Status maps a Kind to its HTTP status code.
func Status(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusRequestEntityTooLarge:
		return CodeTooLarge
	case http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// NewResponse builds the body for status with the given message.
func NewResponse(status int, message string) ErrorResponse {
	return ErrorResponse{Error: http.StatusText(status), Message: message, Code: codeForStatus(status)}
}

// ToResponse converts err into a status code and body. Internal details are
// never placed in the body.
func ToResponse(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorResponse{Error: http.StatusText(he.Code), Message: msg, Code: codeForStatus(he.Code)}
	}

	kind := KindOf(err)
	status := Status(kind)
	if kind == KindInternal {
		return status, ErrorResponse{
			Error:   http.StatusText(status),
			Message: "an unexpected error occurred",
			Code:    CodeInternal,
		}
	}

	var ae *Error
	errors.As(err, &ae)
	return status, ErrorResponse{Error: http.StatusText(status), Message: ae.Message, Code: codeForStatus(status)}
}

// HTTPErrorHandler returns an echo.HTTPErrorHandler that renders application
// errors and logs server-side failures.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := ToResponse(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
