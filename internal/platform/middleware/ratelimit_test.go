package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/platform/auth"
)

func rateLimitedCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("expected X-RateLimit-Limit 1, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 1})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("first request: unexpected error %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	err := h(e.NewContext(req, rec))
	if rateLimitedCode(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}

	retry, perr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if perr != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_KeysByUserBeforeIP(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})(okHandler)

	alice := httptest.NewRequest(http.MethodGet, "/", nil)
	alice.RemoteAddr = "10.0.0.3:1"
	alice, _ = withPrincipal(alice, auth.RolePatient)
	if err := h(e.NewContext(alice, httptest.NewRecorder())); err != nil {
		t.Fatalf("alice: unexpected error %v", err)
	}

	// Same IP, different user: separate bucket.
	bob := httptest.NewRequest(http.MethodGet, "/", nil)
	bob.RemoteAddr = "10.0.0.3:1"
	bob, _ = withPrincipal(bob, auth.RoleTherapist)
	if err := h(e.NewContext(bob, httptest.NewRecorder())); err != nil {
		t.Fatalf("bob: unexpected error %v", err)
	}

	// Anonymous on the same IP: its own bucket too.
	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.3:1"
	if err := h(e.NewContext(anon, httptest.NewRecorder())); err != nil {
		t.Fatalf("anonymous: unexpected error %v", err)
	}
}

func TestLimiterStore_ReusesLimiter(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})
	a := s.get("k1")
	if a != s.get("k1") {
		t.Error("expected same limiter for same key")
	}
	if a == s.get("k2") {
		t.Error("expected different limiter for different key")
	}
}

func TestLimiterStore_BoundedKeys(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5, MaxKeys: 2})
	s.get("a")
	s.get("b")
	s.get("c")
	if n := s.cache.Len(); n != 2 {
		t.Errorf("expected 2 tracked keys, got %d", n)
	}
}

func TestLoginRateLimit(t *testing.T) {
	e := echo.New()
	h := LoginRateLimit(2)(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/token", nil)
		req.RemoteAddr = "192.168.1.10:5000"
		if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/token", nil)
	req.RemoteAddr = "192.168.1.10:5000"
	if err := h(e.NewContext(req, httptest.NewRecorder())); rateLimitedCode(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %v", err)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/token", nil)
	other.RemoteAddr = "192.168.1.11:5000"
	if err := h(e.NewContext(other, httptest.NewRecorder())); err != nil {
		t.Fatalf("other IP should not be limited, got %v", err)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 || cfg.MaxKeys <= 0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
