package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit NoRoute, so scanners probing random
// paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		labels := []string{c.Request.Method, path, strconv.Itoa(c.Writer.Status())}

		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
	}
}
