package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// requestIDMaxLen 限制外部传入的 Request-ID 最大长度
const requestIDMaxLen = 64

// RequestID 请求追踪 ID 中间件
// 从请求头 X-Request-ID 读取，缺失或含不可见字符时生成 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}

		c.Set(requestIDKey, rid)
		c.Header("X-Request-ID", rid)

		c.Next()
	}
}

// validRequestID 只接受可打印 ASCII，防止日志注入
func validRequestID(rid string) bool {
	if rid == "" || len(rid) > requestIDMaxLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] < 0x21 || rid[i] > 0x7e {
			return false
		}
	}
	return true
}
