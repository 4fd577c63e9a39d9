package middleware

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/ErlanBelekov/tourbook/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const msgTooManyRequests = "Too many requests from this IP, please try again in an hour!"

type limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RateLimit caps requests per client IP. When the limiter itself is down
// requests are let through.
func RateLimit(l limiter, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "ratelimit")

	return Gate(func(c *gin.Context) error {
		res, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", "error", err)
			return nil
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.ResetIn.Seconds()))))
			metrics.RateLimitedTotal.Inc()
			return apperr.TooManyRequests(msgTooManyRequests)
		}
		return nil
	})
}
