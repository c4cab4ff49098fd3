// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"sms-relay-go/pkg/log"
)

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// 请求体和响应体可能包含短信内容与手机号，因此不会被记录。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"responseSize", c.Writer.Size(),
		)
	}
}
