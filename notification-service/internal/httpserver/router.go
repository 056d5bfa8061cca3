package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"smartplanner/notification-service/internal/gateway"
	"smartplanner/notification-service/internal/registry"
	"smartplanner/pkg/metrics"
)

func NewRouter(gw *gateway.Gateway, reg *registry.Registry, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	// 请求日志 + 延迟指标（不含 websocket 长连接）
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/ws" {
			c.Next()
			return
		}
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), latency)
	})

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ready", "connections": reg.Count()})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", gw.ServeWS)

	return r
}
