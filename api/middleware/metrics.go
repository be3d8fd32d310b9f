package middleware

import (
	"time"

	"github.com/anoixa/media-album/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics 记录请求数量与耗时，路由使用注册时的模板避免标签膨胀
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

// NoStore 禁止缓存 API 响应
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
