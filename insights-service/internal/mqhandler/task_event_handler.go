package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
	"smartplanner/pkg/logger"
)

// TaskEventHandler mirrors task lifecycle events into the in-memory cache.
// The cache is a projection, so every outcome acks: a malformed body can
// never become well-formed and an upsert cannot fail.
type TaskEventHandler struct {
	cache  *cache.TaskCache
	logger *zap.Logger
}

func NewTaskEventHandler(c *cache.TaskCache, log *zap.Logger) *TaskEventHandler {
	return &TaskEventHandler{cache: c, logger: log}
}

// Handle dispatches on the routing key of the consumed message.
func (h *TaskEventHandler) Handle(ctx context.Context, routingKey string, data json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var payload contracts.TaskEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn("Discarding malformed task event", zap.String("routing_key", routingKey), zap.Error(err))
		return nil
	}
	if payload.TaskID == "" || payload.UserID == "" {
		log.Warn("Discarding task event without ids", zap.String("routing_key", routingKey))
		return nil
	}

	switch routingKey {
	case contracts.RoutingKeyTaskDeleted:
		h.cache.Delete(payload.UserID, payload.TaskID)
		log.Info("Task removed from cache",
			zap.String("task_id", payload.TaskID),
			zap.String("user_id", payload.UserID))
	case contracts.RoutingKeyTaskCreated, contracts.RoutingKeyTaskUpdated:
		h.cache.Upsert(snapshotFrom(payload))
		log.Info("Task cached",
			zap.String("task_id", payload.TaskID),
			zap.String("user_id", payload.UserID),
			zap.String("routing_key", routingKey))
	default:
		log.Warn("Ignoring unexpected routing key", zap.String("routing_key", routingKey))
	}
	return nil
}

func snapshotFrom(p contracts.TaskEventPayload) cache.TaskSnapshot {
	s := cache.TaskSnapshot{
		ID:          p.TaskID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		Priority:    p.Priority,
		UpdatedAt:   time.Now().UTC(),
	}
	if s.Status == "" {
		s.Status = "pending"
	}
	if s.Priority == "" {
		s.Priority = "medium"
	}
	if p.DueDate != nil {
		if due, err := time.Parse(time.RFC3339, *p.DueDate); err == nil {
			s.DueDate = &due
		}
	}
	return s
}
