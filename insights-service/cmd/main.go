package main

import (
	"time"

	"go.uber.org/zap"

	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
	"smartplanner/insights-service/internal/config"
	"smartplanner/insights-service/internal/handler"
	"smartplanner/insights-service/internal/httpserver"
	"smartplanner/insights-service/internal/mqhandler"
	"smartplanner/insights-service/internal/scheduler"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/mq"
	"smartplanner/pkg/redis"
	"smartplanner/pkg/util"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting insights service...")

	// 缓存进程内存态，重启后由事件流重建
	taskCache := cache.NewTaskCache()

	// Redis（重试计数）
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// MQ publisher（通知扇出）
	publisher, err := mq.NewPublisher(cfg.MQ.URL, logger)
	if err != nil {
		logger.Fatal("MQ publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	// 单队列订阅任务全生命周期事件
	taskEventHandler := mqhandler.NewTaskEventHandler(taskCache, logger)
	consumer, err := mq.NewTopicConsumer(cfg.MQ.URL, "insights-service-task-events",
		[]string{
			mqcontracts.RoutingKeyTaskCreated,
			mqcontracts.RoutingKeyTaskUpdated,
			mqcontracts.RoutingKeyTaskDeleted,
		}, logger)
	if err != nil {
		logger.Fatal("Consumer init failed", zap.Error(err))
	}
	policy := mq.RetryPolicy{
		MaxRetries:      cfg.MQ.MaxRetries,
		InfiniteRequeue: cfg.MQ.InfiniteRequeue,
	}
	if err := consumer.SetRetryPolicy(policy, retryCounter); err != nil {
		logger.Fatal("Consumer retry policy failed", zap.Error(err))
	}
	consumer.SetHandler(taskEventHandler.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			logger.Fatal("Consumer crashed", zap.Error(err))
		}
	}()
	defer consumer.Close()

	// 定时任务（提醒 + 晨报）
	reminderScheduler := scheduler.NewReminderScheduler(taskCache, publisher, cfg.Scheduler.MorningHour, logger)
	if err := reminderScheduler.Start(); err != nil {
		logger.Fatal("Reminder scheduler failed", zap.Error(err))
	}
	defer reminderScheduler.Stop()

	// HTTP（分析视图 + 健康检查）
	insightsHandler := handler.NewInsightsHandler(taskCache, publisher, logger)
	router := httpserver.NewRouter(insightsHandler, logger)

	logger.Info("Insights service running", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("HTTP server crashed", zap.Error(err))
	}
}
