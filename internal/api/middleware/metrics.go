package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/pkg/metrics"
)

// Metrics HTTP 请求计数与耗时
// path 取路由模板（/leases/items/:barcode/start），避免条码进入标签
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
