package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/observability"
)

// Prometheus records request counts and latencies labelled by route template.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		observability.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
