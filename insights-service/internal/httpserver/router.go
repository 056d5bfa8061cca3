package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"smartplanner/insights-service/internal/handler"
	"smartplanner/pkg/metrics"
)

func NewRouter(insightsHandler *handler.InsightsHandler, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	// 请求日志 + 延迟指标
	r.Use(func(c *gin.Context) {
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

	// 缓存常驻内存，无外部存储依赖
	r.GET("/readyz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	insights := r.Group("/insights")
	{
		insights.GET("/analytics", insightsHandler.GetAnalytics)
		insights.GET("/upcoming", insightsHandler.GetUpcoming)
	}

	return r
}
