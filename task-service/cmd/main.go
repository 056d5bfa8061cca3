package main

import (
	"time"

	"go.uber.org/zap"

	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/pkg/db"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/mq"
	"smartplanner/pkg/redis"
	"smartplanner/pkg/util"
	"smartplanner/task-service/internal/config"
	"smartplanner/task-service/internal/handler"
	"smartplanner/task-service/internal/httpserver"
	"smartplanner/task-service/internal/mqhandler"
	"smartplanner/task-service/internal/repository"
	"smartplanner/task-service/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting task service...")

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

	// MQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, logger)
	if err != nil {
		logger.Fatal("Publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbConn, logger)
	taskService := service.NewTaskService(taskRepo, publisher, logger)

	// -------------------------
	// Task Create Consumer (voice drafts)
	// -------------------------
	logger.Info("Init consumer: task-service-task-create")
	createConsumer, err := mq.NewTopicConsumer(
		cfg.MQ.URL,
		"task-service-task-create",
		[]string{mqcontracts.RoutingKeyTaskCreate},
		logger,
	)
	if err != nil {
		logger.Fatal("Task create consumer init failed", zap.Error(err))
	}
	if err := createConsumer.SetRetryPolicy(mq.RetryPolicy{
		MaxRetries:      cfg.MQ.MaxRetries,
		InfiniteRequeue: cfg.MQ.InfiniteRequeue,
	}, retryCounter); err != nil {
		logger.Fatal("Task create consumer retry policy failed", zap.Error(err))
	}
	createConsumer.SetHandler(mqhandler.NewTaskCreateHandler(taskService, logger).Handle)

	go func() {
		if err := createConsumer.StartConsuming(); err != nil {
			logger.Fatal("Task create consumer crashed", zap.Error(err))
		}
	}()
	defer createConsumer.Close()

	// HTTP
	taskHandler := handler.NewTaskHandler(taskService, logger)
	router := httpserver.NewRouter(taskHandler, logger, dbConn)

	logger.Info("Task service running", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("HTTP server crashed", zap.Error(err))
	}
}
