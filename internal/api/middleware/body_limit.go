package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit 全局请求体大小限制中间件
// maxBytes: 允许的最大请求体字节数；批注提交体积较大，默认 8MB
// 超限时 ShouldBindJSON 读取失败，Handler 返回 400；Content-Length 已知超限的请求直接 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    10005,
				"message": "请求体过大",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
