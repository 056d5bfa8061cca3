package main

import (
	"time"

	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/config"
	"smartplanner/calendar-service/internal/handler"
	"smartplanner/calendar-service/internal/httpserver"
	"smartplanner/calendar-service/internal/mqhandler"
	"smartplanner/calendar-service/internal/repository"
	"smartplanner/calendar-service/internal/service"
	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/pkg/db"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/mq"
	"smartplanner/pkg/redis"
	"smartplanner/pkg/util"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting calendar service...")

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis（重试计数）
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// repositories + services
	tokenRepo := repository.NewTokenRepository(dbConn, logger)
	mappingRepo := repository.NewMappingRepository(dbConn, logger)
	googleClient := service.NewGoogleClient(cfg.Google)
	calendarService := service.NewCalendarService(tokenRepo, googleClient, logger)

	taskEventHandler := mqhandler.NewTaskEventHandler(mappingRepo, calendarService, logger)

	policy := mq.RetryPolicy{
		MaxRetries:      cfg.MQ.MaxRetries,
		InfiniteRequeue: cfg.MQ.InfiniteRequeue,
	}

	// 每个 routing key 一个独立队列，与任务事件的三种生命周期对应
	consumers := []struct {
		queue      string
		routingKey string
		handler    mq.MessageHandler
	}{
		{"calendar-service-task-created", mqcontracts.RoutingKeyTaskCreated, taskEventHandler.HandleCreated},
		{"calendar-service-task-updated", mqcontracts.RoutingKeyTaskUpdated, taskEventHandler.HandleUpdated},
		{"calendar-service-task-deleted", mqcontracts.RoutingKeyTaskDeleted, taskEventHandler.HandleDeleted},
	}

	for _, c := range consumers {
		logger.Info("Init consumer", zap.String("queue", c.queue))
		consumer, err := mq.NewTopicConsumer(cfg.MQ.URL, c.queue, []string{c.routingKey}, logger)
		if err != nil {
			logger.Fatal("Consumer init failed", zap.String("queue", c.queue), zap.Error(err))
		}
		if err := consumer.SetRetryPolicy(policy, retryCounter); err != nil {
			logger.Fatal("Consumer retry policy failed", zap.String("queue", c.queue), zap.Error(err))
		}
		consumer.SetHandler(c.handler)

		go func(consumer *mq.Consumer, queue string) {
			if err := consumer.StartConsuming(); err != nil {
				logger.Fatal("Consumer crashed", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, c.queue)
		defer consumer.Close()
	}

	// HTTP（OAuth 生命周期 + 健康检查）
	authHandler := handler.NewAuthHandler(calendarService, logger)
	router := httpserver.NewRouter(authHandler, logger, dbConn)

	logger.Info("Calendar service running", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("HTTP server crashed", zap.Error(err))
	}
}
