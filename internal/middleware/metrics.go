package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"office-service/internal/metrics"
)

// Metrics returns a middleware that records HTTP metrics.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/metrics" || path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		// Use route pattern, not actual path, to bound label cardinality
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
