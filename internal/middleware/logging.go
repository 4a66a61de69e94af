package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// slowRequestThreshold 超过该耗时的请求单独告警，
// 解释与评估端点会同步等待后台任务
const slowRequestThreshold = 10 * time.Second

// LoggingMiddleware 请求日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)
		log.Printf("%s %s | %d | %v | %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			latency,
			c.ClientIP(),
		)
		if latency > slowRequestThreshold {
			log.Printf("slow request: %s %s took %v", c.Request.Method, path, latency)
		}
	}
}
