package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"vehicle_parking/internal/metrics"
)

// Metrics records request counts and latency labelled by route template, so
// /plots/1 and /plots/2 share a series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
