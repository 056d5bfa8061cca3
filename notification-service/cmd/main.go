package main

import (
	"go.uber.org/zap"

	"smartplanner/notification-service/internal/config"
	"smartplanner/notification-service/internal/gateway"
	"smartplanner/notification-service/internal/httpserver"
	"smartplanner/notification-service/internal/mqhandler"
	"smartplanner/notification-service/internal/registry"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/mq"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting notification service...")

	// 连接注册表 + websocket 网关
	reg := registry.NewRegistry()
	gw := gateway.NewGateway(reg, logger)

	// fanout 消费者：投递尽力而为，消息一律 ack，不设重试策略
	notificationHandler := mqhandler.NewNotificationHandler(gw, logger)
	consumer, err := mq.NewFanoutConsumer(cfg.MQ.URL, "notification-service-events", logger)
	if err != nil {
		logger.Fatal("Consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(notificationHandler.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			logger.Fatal("Consumer crashed", zap.Error(err))
		}
	}()
	defer consumer.Close()

	// HTTP（websocket 升级 + 健康检查）
	router := httpserver.NewRouter(gw, reg, logger)

	logger.Info("Notification service running", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("HTTP server crashed", zap.Error(err))
	}
}
