package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 任务事件发布计数
	TaskEventPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_event_published_total",
			Help: "Total number of task lifecycle events published",
		},
		[]string{"routing_key", "status"}, // status: success, failed
	)

	// Google Calendar API 调用延迟（毫秒）
	CalendarCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calendar_call_latency_ms",
			Help:    "Google Calendar API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"}, // operation: create, update, delete, refresh
	)

	// 通知投递计数
	NotificationDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivered_total",
			Help: "Total number of notifications pushed or dropped by the gateway",
		},
		[]string{"type", "outcome"}, // outcome: pushed, dropped
	)

	// 当前 WebSocket 连接数
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of registered websocket connections",
		},
	)

	// 死信计数
	DeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_dead_lettered_total",
			Help: "Total number of messages routed to the dead letter queue",
		},
		[]string{"queue"},
	)

	// 调度任务执行计数
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduler job executions",
		},
		[]string{"job"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordCalendarCallLatency 记录 Calendar API 调用延迟
func RecordCalendarCallLatency(operation, status string, duration time.Duration) {
	CalendarCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// IncrementTaskEventPublished 增加任务事件发布计数
func IncrementTaskEventPublished(routingKey, status string) {
	TaskEventPublished.WithLabelValues(routingKey, status).Inc()
}

// IncrementNotificationDelivered 增加通知投递计数
func IncrementNotificationDelivered(notificationType, outcome string) {
	NotificationDelivered.WithLabelValues(notificationType, outcome).Inc()
}

// IncrementDeadLettered 增加死信计数
func IncrementDeadLettered(queue string) {
	DeadLettered.WithLabelValues(queue).Inc()
}

// RecordSchedulerRun 增加调度任务执行计数
func RecordSchedulerRun(job string) {
	SchedulerRuns.WithLabelValues(job).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
