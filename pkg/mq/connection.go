package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// TasksExchange 任务生命周期事件（topic）
	TasksExchange = "tasks"
	// NotificationsExchange 用户通知广播（fanout）
	NotificationsExchange = "notifications"

	// ReconnectDelay 连接失败后的固定重试间隔
	ReconnectDelay = 5 * time.Second
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// NewConnectionWithRetry keeps dialing on a fixed delay until the broker
// accepts the connection. Blocks indefinitely.
func NewConnectionWithRetry(url string, logger *zap.Logger) *amqp091.Connection {
	for {
		conn, err := NewConnection(url)
		if err == nil {
			return conn
		}
		logger.Warn("RabbitMQ connection failed, retrying",
			zap.Duration("delay", ReconnectDelay),
			zap.Error(err),
		)
		time.Sleep(ReconnectDelay)
	}
}

// DeclareTasksExchange declares the durable topic exchange for task events.
func DeclareTasksExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		TasksExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareNotificationsExchange declares the durable fanout exchange for
// notification events.
func DeclareNotificationsExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		NotificationsExchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
}
