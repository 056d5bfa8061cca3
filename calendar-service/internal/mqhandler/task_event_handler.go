package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/model"
	"smartplanner/calendar-service/internal/service"
	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/util"
)

// MappingStore persists task ↔ calendar event links.
type MappingStore interface {
	Find(ctx context.Context, taskID, userID string) (*model.TaskCalendarMapping, error)
	Insert(ctx context.Context, m *model.TaskCalendarMapping) error
	Delete(ctx context.Context, taskID, userID string) error
}

// CalendarSync performs the external calendar side effects.
type CalendarSync interface {
	IsConnected(ctx context.Context, userID string) (bool, error)
	CreateEvent(ctx context.Context, userID, title, description string, due time.Time) (eventID, calendarID string, err error)
	UpdateEvent(ctx context.Context, userID, eventID, title, description string, due time.Time) error
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// TaskEventHandler projects task lifecycle events into the external calendar.
// Creation is idempotent (guarded by mapping existence); update and delete
// are not guarded against redelivery order.
type TaskEventHandler struct {
	mappings MappingStore
	calendar CalendarSync
	logger   *zap.Logger
}

func NewTaskEventHandler(mappings MappingStore, calendar CalendarSync, log *zap.Logger) *TaskEventHandler {
	return &TaskEventHandler{mappings: mappings, calendar: calendar, logger: log}
}

func (h *TaskEventHandler) HandleCreated(ctx context.Context, routingKey string, raw json.RawMessage) error {
	event, ok := h.decode(ctx, raw)
	if !ok {
		return nil
	}
	return h.createEvent(ctx, event)
}

func (h *TaskEventHandler) HandleUpdated(ctx context.Context, routingKey string, raw json.RawMessage) error {
	event, ok := h.decode(ctx, raw)
	if !ok {
		return nil
	}
	log := logger.WithTrace(ctx, h.logger)

	mapping, err := h.mappings.Find(ctx, event.TaskID, event.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		// 没有映射的 updated 事件按 created 处理（用户后来才加截止时间）
		log.Info("No mapping for updated task, creating event",
			zap.String("task_id", event.TaskID),
		)
		return h.createEvent(ctx, event)
	}
	if err != nil {
		return h.classify(ctx, err, "find mapping", event.TaskID)
	}

	due, ok := parseDueDate(ctx, h.logger, event)
	if !ok {
		return nil
	}

	if due == nil {
		// 截止时间被移除：删外部事件，删映射
		if err := h.calendar.DeleteEvent(ctx, event.UserID, mapping.GoogleEventID); err != nil {
			log.Error("Failed to delete calendar event, removing mapping anyway",
				zap.String("task_id", event.TaskID),
				zap.String("google_event_id", mapping.GoogleEventID),
				zap.Error(err),
			)
		}
		if err := h.mappings.Delete(ctx, event.TaskID, event.UserID); err != nil {
			return h.classify(ctx, err, "delete mapping", event.TaskID)
		}
		log.Info("Calendar event removed (due date cleared)",
			zap.String("task_id", event.TaskID),
			zap.String("google_event_id", mapping.GoogleEventID),
		)
		return nil
	}

	err = h.calendar.UpdateEvent(ctx, event.UserID, mapping.GoogleEventID, event.Title, event.Description, *due)
	if err != nil {
		// 更新失败只记录，映射保留，不校验远端事件是否还存在
		return h.classify(ctx, err, "update event", event.TaskID)
	}

	log.Info("Calendar event updated",
		zap.String("task_id", event.TaskID),
		zap.String("google_event_id", mapping.GoogleEventID),
	)
	return nil
}

func (h *TaskEventHandler) HandleDeleted(ctx context.Context, routingKey string, raw json.RawMessage) error {
	event, ok := h.decode(ctx, raw)
	if !ok {
		return nil
	}
	log := logger.WithTrace(ctx, h.logger)

	mapping, err := h.mappings.Find(ctx, event.TaskID, event.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return h.classify(ctx, err, "find mapping", event.TaskID)
	}

	if err := h.calendar.DeleteEvent(ctx, event.UserID, mapping.GoogleEventID); err != nil {
		log.Error("Failed to delete calendar event, removing mapping anyway",
			zap.String("task_id", event.TaskID),
			zap.String("google_event_id", mapping.GoogleEventID),
			zap.Error(err),
		)
	}
	if err := h.mappings.Delete(ctx, event.TaskID, event.UserID); err != nil {
		return h.classify(ctx, err, "delete mapping", event.TaskID)
	}

	log.Info("Calendar event removed for deleted task",
		zap.String("task_id", event.TaskID),
		zap.String("google_event_id", mapping.GoogleEventID),
	)
	return nil
}

// createEvent is the NO_MAPPING → MAPPED transition, shared by created events
// and mapping-less updated events.
func (h *TaskEventHandler) createEvent(ctx context.Context, event mqcontracts.TaskEventPayload) error {
	log := logger.WithTrace(ctx, h.logger)

	// 幂等性检查：映射已存在则重复投递直接跳过
	_, err := h.mappings.Find(ctx, event.TaskID, event.UserID)
	if err == nil {
		log.Info("Mapping already exists, skipping creation",
			zap.String("task_id", event.TaskID),
		)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return h.classify(ctx, err, "find mapping", event.TaskID)
	}

	connected, err := h.calendar.IsConnected(ctx, event.UserID)
	if err != nil {
		return h.classify(ctx, err, "connection check", event.TaskID)
	}
	if !connected {
		log.Info("User not connected to Google Calendar",
			zap.String("user_id", event.UserID),
		)
		return nil
	}

	due, ok := parseDueDate(ctx, h.logger, event)
	if !ok {
		return nil
	}
	if due == nil {
		log.Info("Task has no due date, skipping calendar event",
			zap.String("task_id", event.TaskID),
		)
		return nil
	}

	eventID, calendarID, err := h.calendar.CreateEvent(ctx, event.UserID, event.Title, event.Description, *due)
	if err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			return nil
		}
		return h.classify(ctx, err, "create event", event.TaskID)
	}

	err = h.mappings.Insert(ctx, &model.TaskCalendarMapping{
		TaskID:        event.TaskID,
		UserID:        event.UserID,
		GoogleEventID: eventID,
		CalendarID:    calendarID,
	})
	if err != nil {
		return h.classify(ctx, err, "insert mapping", event.TaskID)
	}

	log.Info("Mapped task to calendar event",
		zap.String("task_id", event.TaskID),
		zap.String("google_event_id", eventID),
	)
	return nil
}

func (h *TaskEventHandler) decode(ctx context.Context, raw json.RawMessage) (mqcontracts.TaskEventPayload, bool) {
	var event mqcontracts.TaskEventPayload
	if err := json.Unmarshal(raw, &event); err != nil {
		// JSON decode 错误 - 不可重试
		logger.WithTrace(ctx, h.logger).Error("Failed to unmarshal task event (non-retryable)",
			zap.Error(err),
		)
		return event, false
	}
	if event.TaskID == "" || event.UserID == "" {
		logger.WithTrace(ctx, h.logger).Error("Task event missing taskId or userId (non-retryable)")
		return event, false
	}
	return event, true
}

// classify decides ack vs requeue for a failed step.
func (h *TaskEventHandler) classify(ctx context.Context, err error, step, taskID string) error {
	isRetryable, errType := util.IsRetryableError(err)
	logger.WithTrace(ctx, h.logger).Error("Calendar sync step failed",
		zap.String("step", step),
		zap.String("task_id", taskID),
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Error(err),
	)
	if !isRetryable {
		return nil // 不可重试错误，ack 掉，这次同步放弃
	}
	return err // 可重试错误，nack 并重试
}

func parseDueDate(ctx context.Context, log *zap.Logger, event mqcontracts.TaskEventPayload) (*time.Time, bool) {
	if event.DueDate == nil || *event.DueDate == "" {
		return nil, true
	}
	due, err := time.Parse(time.RFC3339, *event.DueDate)
	if err != nil {
		logger.WithTrace(ctx, log).Error("Invalid dueDate in task event (non-retryable)",
			zap.String("task_id", event.TaskID),
			zap.String("due_date", *event.DueDate),
			zap.Error(err),
		)
		return nil, false
	}
	return &due, true
}
