package mq

import (
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"smartplanner/pkg/trace"
)

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewPublisher connects (retrying on the fixed delay) and declares both
// exchanges so publishing never races queue topology setup.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn := NewConnectionWithRetry(url, logger)

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareTasksExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare tasks exchange: %w", err)
	}
	if err := DeclareNotificationsExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare notifications exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	if p.conn.IsClosed() {
		return false
	}
	return true
}

// PublishTaskEvent publishes a task lifecycle event on the topic exchange.
func (p *Publisher) PublishTaskEvent(routingKey string, payload any) error {
	return p.publish(TasksExchange, routingKey, payload)
}

// PublishNotification publishes a notification event on the fanout exchange.
// The routing key is ignored by fanout exchanges.
func (p *Publisher) PublishNotification(payload any) error {
	return p.publish(NotificationsExchange, "", payload)
}

func (p *Publisher) publish(exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Headers: amqp091.Table{
				trace.HeaderName(): trace.GenerateTraceID(),
			},
		},
	)
}
