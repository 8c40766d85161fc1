package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
)

// Middleware records HTTP metrics for each request.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		m.RecordRequestLatency(endpoint, c.Request.Method, status, duration)
		m.RecordHTTPRequest(endpoint, c.Request.Method, status)

		if len(c.Errors) > 0 {
			logger.Error("request error", "path", endpoint, "error", c.Errors.String())
		}
	}
}
