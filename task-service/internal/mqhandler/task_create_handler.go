package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/pkg/util"
	"smartplanner/task-service/internal/service"
)

// TaskCreateHandler consumes validated task drafts (voice pipeline) and turns
// them into ordinary task creations through the same service path as manual
// creation, so they re-enter the event pipeline uniformly.
type TaskCreateHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskCreateHandler(tasks *service.TaskService, logger *zap.Logger) *TaskCreateHandler {
	return &TaskCreateHandler{tasks: tasks, logger: logger}
}

func (h *TaskCreateHandler) Handle(ctx context.Context, routingKey string, raw json.RawMessage) error {
	var p mqcontracts.TaskCreateRequestPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// JSON decode 错误 - 不可重试
		h.logger.Error("Failed to unmarshal task create payload (non-retryable)",
			zap.Error(err),
		)
		return nil // 返回 nil，让 consumer ack 掉
	}

	if p.UserID == "" || p.Title == "" {
		h.logger.Error("Task create payload missing userId or title (non-retryable)",
			zap.String("source", p.Source),
		)
		return nil
	}

	var due *time.Time
	if p.DueDate != nil && *p.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, *p.DueDate)
		if err != nil {
			h.logger.Error("Invalid dueDate in task create payload (non-retryable)",
				zap.String("due_date", *p.DueDate),
				zap.Error(err),
			)
			return nil
		}
		due = &parsed
	}

	h.logger.Info("Creating task from draft",
		zap.String("user_id", p.UserID),
		zap.String("title", p.Title),
		zap.String("source", p.Source),
	)

	t, err := h.tasks.Create(ctx, p.UserID, service.CreateTaskInput{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		DueDate:     due,
	})
	if err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to create task from draft",
			zap.String("user_id", p.UserID),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if !isRetryable {
			return nil // 不可重试错误，ack 掉
		}
		return err // 可重试错误，nack 并重试
	}

	h.logger.Info("Task created from draft",
		zap.String("task_id", t.ID),
		zap.String("user_id", t.UserID),
	)
	return nil
}
