package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy selects how clients are identified for rate limiting.
type RateLimitStrategy string

const (
	// StrategyIP buckets requests by client IP (requires ClientIPMiddleware
	// upstream, falls back to RemoteAddr).
	StrategyIP RateLimitStrategy = "ip"

	// StrategyCustom buckets requests by the configured KeyExtractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting.
type RateLimitConfig struct {
	// BucketName scopes the limit. Routes sharing a BucketName share the
	// same budget.
	BucketName string

	// Limit is the maximum number of requests allowed per Window.
	Limit int

	// Window is the time window the Limit applies to.
	Window time.Duration

	// Strategy selects the client identification scheme.
	Strategy RateLimitStrategy

	// KeyExtractor derives the client key when Strategy is StrategyCustom.
	KeyExtractor func(*http.Request) (string, error)

	// ExceededHandler is invoked when the limit is exceeded. A default 429
	// Too Many Requests response is sent when nil.
	ExceededHandler http.Handler
}

// RateLimiter decides whether a request identified by key may proceed under
// the given limit and window. It reports the remaining budget and the time
// until the window resets.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) (allowed bool, remaining int, reset time.Duration)
}

// UberRateLimiter implements RateLimiter with a fixed-window counter per key
// for admission plus a leaky bucket from go.uber.org/ratelimit that smooths
// admitted requests across the window instead of letting them burst.
type UberRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	limiter     ratelimit.Limiter
	windowStart time.Time
	count       int
}

// NewUberRateLimiter creates a new rate limiter.
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{buckets: make(map[string]*rateBucket)}
}

// Allow implements RateLimiter.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	if window <= 0 {
		window = time.Second
	}

	now := time.Now()

	u.mu.Lock()
	b, ok := u.buckets[key]
	if !ok {
		rps := int(float64(limit) / window.Seconds())
		if rps < 1 {
			rps = 1
		}
		b = &rateBucket{limiter: ratelimit.New(rps), windowStart: now}
		u.buckets[key] = b
	}

	if now.Sub(b.windowStart) > window {
		b.windowStart = now
		b.count = 0
	}

	reset := window - now.Sub(b.windowStart)
	if b.count >= limit {
		u.mu.Unlock()
		return false, 0, reset
	}
	b.count++
	remaining := limit - b.count
	limiter := b.limiter
	u.mu.Unlock()

	// Take blocks until the leaky bucket admits the request; done outside
	// the lock so one throttled key cannot stall the others.
	limiter.Take()
	return true, remaining, reset
}

// RateLimit creates a middleware that enforces the given rate limit config.
// Rejected requests get X-RateLimit headers and a Retry-After hint.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := rateLimitKey(config, r)
			if err != nil {
				logger.Error("Rate limit key extraction failed",
					zap.Error(err),
					zap.String("bucket", config.BucketName),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			allowed, remaining, reset := limiter.Allow(key, config.Limit, config.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("bucket", config.BucketName),
					zap.String("key", key),
					zap.String("path", r.URL.Path),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
				if config.ExceededHandler != nil {
					config.ExceededHandler.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey derives the bucket-scoped client key for a request.
func rateLimitKey(config *RateLimitConfig, r *http.Request) (string, error) {
	var client string
	switch config.Strategy {
	case StrategyCustom:
		if config.KeyExtractor != nil {
			key, err := config.KeyExtractor(r)
			if err != nil {
				return "", err
			}
			client = key
		}
	default:
		client = ClientIP(r)
	}
	if client == "" {
		client = r.RemoteAddr
	}
	return config.BucketName + ":" + client, nil
}
