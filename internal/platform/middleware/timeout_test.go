package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
)

func TestRequestTimeout_CompletesWithinDeadline(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/appointments", nil), httptest.NewRecorder())

	called := false
	handler := func(c echo.Context) error {
		called = true
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected context to have a deadline")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestTimeout(5*time.Second, zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequestTimeout_ReturnsTimeoutOnExpiry(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil), rec)

	handler := func(c echo.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return c.String(http.StatusOK, "ok")
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	if err := RequestTimeout(50*time.Millisecond, zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504, got %d", rec.Code)
	}

	var body apperr.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Code != apperr.CodeTimeout {
		t.Errorf("expected code %s, got %s", apperr.CodeTimeout, body.Code)
	}
}

func TestRequestTimeout_SkipsWebSocket(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	req.Header.Set(echo.HeaderUpgrade, "websocket")
	req.Header.Set("Connection", "Upgrade")
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on the websocket endpoint")
		}
		return nil
	}

	if err := RequestTimeout(50*time.Millisecond, zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/messages/123", nil), httptest.NewRecorder())

	handler := func(c echo.Context) error {
		return apperr.NotFound("message")
	}

	if err := RequestTimeout(5*time.Second, zerolog.Nop())(handler)(c); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/appointments", nil), httptest.NewRecorder())

	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline when timeout is zero")
		}
		return nil
	}
	if err := RequestTimeout(0, zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
