package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "tasks.dlq"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares a dead letter queue for a specific source queue.
// Dead-lettered messages keep their original routing key in the headers and
// are routed by source queue name instead.
func DeclareDLQQueue(ch *amqp091.Channel, sourceQueue string) (amqp091.Queue, error) {
	queueName := fmt.Sprintf("%s.dlq", sourceQueue)

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		sourceQueue,
		DLQExchangeName,
		false,
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// publishToDLQ publishes a poisoned delivery to the dead letter queue with
// the failure context in the headers.
func (c *Consumer) publishToDLQ(msg amqp091.Delivery, originalError string) error {
	headers := amqp091.Table{
		"x-original-error":       originalError,
		"x-original-routing-key": msg.RoutingKey,
		"x-failed-queue":         c.queue.Name,
	}

	return c.channel.Publish(
		DLQExchangeName,
		c.queue.Name,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
}
