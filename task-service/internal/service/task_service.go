package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/metrics"
	"smartplanner/task-service/internal/model"
)

// TaskStore is the authoritative task persistence.
type TaskStore interface {
	Insert(ctx context.Context, t *model.Task) error
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, taskID, userID string) error
	FindByID(ctx context.Context, taskID, userID string) (*model.Task, error)
	ListByUser(ctx context.Context, userID string) ([]model.Task, error)
}

// EventPublisher publishes task lifecycle events onto the tasks exchange.
type EventPublisher interface {
	PublishTaskEvent(routingKey string, payload any) error
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	// ClearDueDate removes the due date; DueDate is ignored when set.
	ClearDueDate bool
}

type TaskService struct {
	store     TaskStore
	publisher EventPublisher
	logger    *zap.Logger
}

func NewTaskService(store TaskStore, publisher EventPublisher, log *zap.Logger) *TaskService {
	return &TaskService{store: store, publisher: publisher, logger: log}
}

// Create persists a new task and publishes task.created. The publish happens
// after the commit; a publish failure is logged and does not undo the write.
func (s *TaskService) Create(ctx context.Context, userID string, in CreateTaskInput) (*model.Task, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %q", priority)
	}

	t := &model.Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusPending,
		Priority:    priority,
		DueDate:     in.DueDate,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, mqcontracts.RoutingKeyTaskCreated, taskEventPayload(t))
	return t, nil
}

// Update applies a partial update and publishes task.updated.
func (s *TaskService) Update(ctx context.Context, taskID, userID string, in UpdateTaskInput) (*model.Task, error) {
	t, err := s.store.FindByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		if !model.ValidPriority(*in.Priority) {
			return nil, fmt.Errorf("invalid priority: %q", *in.Priority)
		}
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		if !model.ValidStatus(*in.Status) {
			return nil, fmt.Errorf("invalid status: %q", *in.Status)
		}
		if *in.Status == model.StatusCompleted && t.CompletedAt == nil {
			now := time.Now().UTC()
			t.CompletedAt = &now
		}
		t.Status = *in.Status
	}
	if in.ClearDueDate {
		t.DueDate = nil
	} else if in.DueDate != nil {
		t.DueDate = in.DueDate
	}

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, mqcontracts.RoutingKeyTaskUpdated, taskEventPayload(t))
	return t, nil
}

// Delete removes a task and publishes task.deleted (taskId + userId only).
func (s *TaskService) Delete(ctx context.Context, taskID, userID string) error {
	if _, err := s.store.FindByID(ctx, taskID, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, taskID, userID); err != nil {
		return err
	}

	s.publishEvent(ctx, mqcontracts.RoutingKeyTaskDeleted, mqcontracts.TaskEventPayload{
		TaskID: taskID,
		UserID: userID,
	})
	return nil
}

func (s *TaskService) Get(ctx context.Context, taskID, userID string) (*model.Task, error) {
	return s.store.FindByID(ctx, taskID, userID)
}

func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, error) {
	return s.store.ListByUser(ctx, userID)
}

// publishEvent 发布事件；失败只记录日志，本地存储仍是权威数据
func (s *TaskService) publishEvent(ctx context.Context, routingKey string, payload mqcontracts.TaskEventPayload) {
	if err := s.publisher.PublishTaskEvent(routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to publish task event",
			zap.String("routing_key", routingKey),
			zap.String("task_id", payload.TaskID),
			zap.Error(err),
		)
		metrics.IncrementTaskEventPublished(routingKey, "failed")
		return
	}
	logger.WithTrace(ctx, s.logger).Info("Published task event",
		zap.String("routing_key", routingKey),
		zap.String("task_id", payload.TaskID),
	)
	metrics.IncrementTaskEventPublished(routingKey, "success")
}

func taskEventPayload(t *model.Task) mqcontracts.TaskEventPayload {
	var due *string
	if t.DueDate != nil {
		s := t.DueDate.UTC().Format(time.RFC3339)
		due = &s
	}
	return mqcontracts.TaskEventPayload{
		TaskID:      t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     due,
		Priority:    t.Priority,
		Status:      t.Status,
	}
}
