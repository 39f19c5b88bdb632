package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig defines a fixed-window limit
type RateLimitConfig struct {
	// Requests is the maximum number of requests allowed within the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
	// KeyFunc returns the bucket for a request; defaults to ActorKey
	KeyFunc func(c echo.Context) string
	// Message is the error message returned when rate limit is exceeded
	Message string
	// Clock defaults to the wall clock
	Clock clock.Clock
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// RateLimiter counts requests per key in fixed windows. Expired buckets are
// pruned at most once per window while serving requests.
type RateLimiter struct {
	config    RateLimitConfig
	store     map[string]*rateLimitEntry
	nextPrune time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ActorKey
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	return &RateLimiter{
		config: config,
		store:  make(map[string]*rateLimitEntry),
	}
}

// ActorKey buckets by the resolved user, falling back to the client IP
func ActorKey(c echo.Context) string {
	if actor, ok := GetActor(c); ok {
		return "user:" + actor.UserID
	}
	return "ip:" + c.RealIP()
}

// Allow records one request for key and reports whether it fits the limit
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.config.Clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.nextPrune) {
		for k, entry := range rl.store {
			if now.After(entry.expiresAt) {
				delete(rl.store, k)
			}
		}
		rl.nextPrune = now.Add(rl.config.Window)
	}

	entry, exists := rl.store[key]
	if !exists || now.After(entry.expiresAt) {
		rl.store[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(rl.config.Window)}
		return true
	}
	if entry.count >= rl.config.Requests {
		return false
	}
	entry.count++
	return true
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rl.config.KeyFunc(c)
			if !rl.Allow(key) {
				logger.Debugf("rate limit exceeded for %s", key)
				return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
			}
			return next(c)
		}
	}
}

// NewUploadRateLimiter limits file uploads per user
func NewUploadRateLimiter(requests int, window time.Duration) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Requests: requests,
		Window:   window,
		Message:  "Too many uploads. Please wait before trying again.",
	})
}
