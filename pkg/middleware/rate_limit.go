package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	// TTL is how long an idle visitor is remembered
	TTL time.Duration
}

// RateLimiter hands out one token bucket per client IP. Idle visitors expire
// from the cache on their own.
type RateLimiter struct {
	config   RateLimiterConfig
	visitors *ttlcache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.TTL == 0 {
		config.TTL = 3 * time.Minute
	}

	if config.Burst < 1 {
		config.Burst = max(1, int(config.RequestsPerSecond))
	}

	visitors := ttlcache.NewCache()
	visitors.SetTTL(config.TTL)

	return &RateLimiter{
		config:   config,
		visitors: visitors,
	}
}

func (r *RateLimiter) limiter(ip string) *rate.Limiter {
	v, err := r.visitors.Get(ip)
	if err == nil {
		return v.(*rate.Limiter)
	}

	if !errors.Is(err, ttlcache.ErrNotFound) {
		zap.L().Warn("Visitor cache lookup failed", zap.Error(err))
	}

	l := rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
	if err := r.visitors.Set(ip, l); err != nil {
		zap.L().Warn("Failed to remember visitor", zap.Error(err))
	}

	return l
}

// Allow reports whether a request from ip may proceed now
func (r *RateLimiter) Allow(ip string) bool {
	return r.limiter(ip).Allow()
}

func (r *RateLimiter) Close() error {
	return r.visitors.Close()
}

// RateLimiterMiddleware limits requests per client IP. A non-positive rate
// disables limiting.
func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	if config.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	rl := NewRateLimiter(config)

	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests",
				"requestID": RequestID(c),
			})
			return
		}

		c.Next()
	}
}
