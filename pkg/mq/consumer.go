package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"smartplanner/pkg/metrics"
	"smartplanner/pkg/trace"
	"smartplanner/pkg/util"
)

// MessageHandler processes one delivery. A nil return acks the message;
// an error return hands it to the retry policy.
type MessageHandler func(ctx context.Context, routingKey string, data json.RawMessage) error

// RetryPolicy controls what happens when a handler returns an error.
// With InfiniteRequeue the message is nacked with requeue forever (the
// original poison-message behavior, kept for test parity). Otherwise the
// delivery is retried up to MaxRetries times and then dead-lettered.
type RetryPolicy struct {
	MaxRetries      int
	InfiniteRequeue bool
}

type Consumer struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	queue        amqp091.Queue
	exchange     string
	routingKeys  []string
	handler      MessageHandler
	policy       RetryPolicy
	retryCounter *util.RetryCounter
	logger       *zap.Logger
}

// NewTopicConsumer creates a consumer with a durable queue bound to the tasks
// topic exchange for each of the given routing keys.
func NewTopicConsumer(url, queueName string, routingKeys []string, logger *zap.Logger) (*Consumer, error) {
	return newConsumer(url, queueName, TasksExchange, routingKeys, logger)
}

// NewFanoutConsumer creates a consumer with a durable queue bound to the
// notifications fanout exchange. Every bound queue receives every message.
func NewFanoutConsumer(url, queueName string, logger *zap.Logger) (*Consumer, error) {
	return newConsumer(url, queueName, NotificationsExchange, []string{""}, logger)
}

func newConsumer(url, queueName, exchange string, routingKeys []string, logger *zap.Logger) (*Consumer, error) {
	conn := NewConnectionWithRetry(url, logger)

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	switch exchange {
	case TasksExchange:
		err = DeclareTasksExchange(ch)
	case NotificationsExchange:
		err = DeclareNotificationsExchange(ch)
	default:
		err = fmt.Errorf("unknown exchange: %s", exchange)
	}
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	logger.Info("Consumer initialized",
		zap.Strings("routing_keys", routingKeys),
		zap.String("queue", queueName),
		zap.String("exchange", exchange),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		exchange:    exchange,
		routingKeys: routingKeys,
		logger:      logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetRetryPolicy enables bounded retry with dead-lettering. Without it (or
// with InfiniteRequeue set) failed deliveries are requeued forever.
func (c *Consumer) SetRetryPolicy(policy RetryPolicy, counter *util.RetryCounter) error {
	c.policy = policy
	c.retryCounter = counter
	if policy.InfiniteRequeue || counter == nil {
		return nil
	}
	if err := DeclareDLQExchange(c.channel); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(c.channel, c.queue.Name); err != nil {
		return err
	}
	return nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("queue", c.queue.Name),
	)

	// 最安全的消费模型：保证每条消息都会被 ack 或 nack
	for msg := range deliveries {
		c.consumeOne(msg)
	}

	return nil
}

func (c *Consumer) consumeOne(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if tid, ok := msg.Headers[trace.HeaderName()].(string); ok && tid != "" {
		ctx = trace.WithContext(ctx, tid)
	} else {
		ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	}

	c.logger.Debug("Received message",
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.Int("message_size", len(msg.Body)),
	)

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", msg.RoutingKey),
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			c.reject(ctx, msg, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := c.handler(ctx, msg.RoutingKey, msg.Body); err != nil {
		c.logger.Error("Handler error",
			zap.String("routing_key", msg.RoutingKey),
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		c.reject(ctx, msg, err)
		return
	}

	if c.retryCounter != nil {
		// 成功后清掉重试计数，避免同一任务后续消息被历史失败拖累
		_ = c.retryCounter.Reset(ctx, util.FormatRetryKey(c.queue.Name, msg.Body))
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err),
		)
		return
	}

	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))
}

// reject applies the retry policy to a failed delivery.
func (c *Consumer) reject(ctx context.Context, msg amqp091.Delivery, cause error) {
	if c.policy.InfiniteRequeue || c.retryCounter == nil {
		// 业务失败 → 拒绝消息并重新入队，让 MQ 重试
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack message",
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err),
			)
		}
		return
	}

	key := util.FormatRetryKey(c.queue.Name, msg.Body)
	count, err := c.retryCounter.IncrementAndGet(ctx, key)
	if err != nil {
		// Redis 不可用时退回 requeue，宁可多试也不丢消息
		c.logger.Warn("Retry counter unavailable, requeueing",
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		_ = msg.Nack(false, true)
		return
	}

	if count <= int64(c.policy.MaxRetries) {
		c.logger.Info("Requeueing failed message",
			zap.String("queue", c.queue.Name),
			zap.Int64("retry_count", count),
			zap.Int("max_retries", c.policy.MaxRetries),
		)
		_ = msg.Nack(false, true)
		return
	}

	// 超过最大重试次数 → 投递到死信队列并 ack，终止重投循环
	c.logger.Warn("Max retries exceeded, dead-lettering message",
		zap.String("queue", c.queue.Name),
		zap.String("routing_key", msg.RoutingKey),
		zap.Int64("retry_count", count),
		zap.Error(cause),
	)
	if err := c.publishToDLQ(msg, cause.Error()); err != nil {
		c.logger.Error("Failed to publish to DLQ, requeueing instead",
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		_ = msg.Nack(false, true)
		return
	}
	metrics.IncrementDeadLettered(c.queue.Name)
	_ = c.retryCounter.Reset(ctx, key)
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack dead-lettered message",
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
	}
}
