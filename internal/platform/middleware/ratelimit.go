package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/mindlab/health/internal/platform/auth"
)

// RateLimitConfig configures a keyed token-bucket limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// MaxKeys bounds the number of tracked clients; idle keys are evicted
	// after IdleTTL.
	MaxKeys int
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		MaxKeys:           10000,
		IdleTTL:           10 * time.Minute,
	}
}

// limiterStore hands out one rate.Limiter per key.
type limiterStore struct {
	limit rate.Limit
	burst int
	cache *expirable.LRU[string, *rate.Limiter]
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &limiterStore{
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: cfg.BurstSize,
		cache: expirable.NewLRU[string, *rate.Limiter](cfg.MaxKeys, nil, cfg.IdleTTL),
	}
}

// get returns the limiter for key. Two concurrent first requests may each
// build a limiter; the last Add wins, which only costs one extra token.
func (s *limiterStore) get(key string) *rate.Limiter {
	if l, ok := s.cache.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.cache.Add(key, l)
	return l
}

// retryAfter returns whole seconds until l grants another token.
func retryAfter(l *rate.Limiter) int {
	r := l.Reserve()
	defer r.Cancel()
	if !r.OK() {
		return 1
	}
	secs := int(math.Ceil(r.Delay().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimit limits each authenticated user, or each client IP for anonymous
// requests, to cfg.RequestsPerSecond with bursts of cfg.BurstSize.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)

			l := store.get(key)
			if !l.Allow() {
				h.Set("Retry-After", strconv.Itoa(retryAfter(l)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// LoginRateLimit caps credential attempts per client IP at perMinute, with
// the full allowance available as a burst.
func LoginRateLimit(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		perMinute = 10
	}
	store := newLimiterStore(RateLimitConfig{
		RequestsPerSecond: float64(perMinute) / 60,
		BurstSize:         perMinute,
		IdleTTL:           15 * time.Minute,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := store.get(c.RealIP())
			if !l.Allow() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter(l)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
			}
			return next(c)
		}
	}
}
