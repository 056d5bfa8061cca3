package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/model"
)

type MappingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMappingRepository(db *pgxpool.Pool, logger *zap.Logger) *MappingRepository {
	return &MappingRepository{db: db, logger: logger}
}

// Find returns pgx.ErrNoRows when no mapping exists for (taskID, userID).
func (r *MappingRepository) Find(ctx context.Context, taskID, userID string) (*model.TaskCalendarMapping, error) {
	query := `
        SELECT task_id, user_id, google_event_id, calendar_id, created_at
        FROM task_calendar_mappings
        WHERE task_id = $1 AND user_id = $2
    `
	var m model.TaskCalendarMapping
	err := r.db.QueryRow(ctx, query, taskID, userID).Scan(
		&m.TaskID,
		&m.UserID,
		&m.GoogleEventID,
		&m.CalendarID,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MappingRepository) Insert(ctx context.Context, m *model.TaskCalendarMapping) error {
	r.logger.Debug("Inserting task calendar mapping",
		zap.String("task_id", m.TaskID),
		zap.String("user_id", m.UserID),
	)
	// ON CONFLICT DO NOTHING 保证幂等性：重复投递不会产生第二条映射
	query := `
        INSERT INTO task_calendar_mappings (task_id, user_id, google_event_id, calendar_id)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (task_id, user_id) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query,
		m.TaskID,
		m.UserID,
		m.GoogleEventID,
		m.CalendarID,
	)
	if err != nil {
		r.logger.Error("Failed to insert mapping",
			zap.Error(err),
			zap.String("task_id", m.TaskID),
		)
		return err
	}
	r.logger.Info("Task mapped to calendar event",
		zap.String("task_id", m.TaskID),
		zap.String("google_event_id", m.GoogleEventID),
	)
	return nil
}

func (r *MappingRepository) Delete(ctx context.Context, taskID, userID string) error {
	r.logger.Debug("Deleting task calendar mapping",
		zap.String("task_id", taskID),
		zap.String("user_id", userID),
	)
	_, err := r.db.Exec(ctx,
		`DELETE FROM task_calendar_mappings WHERE task_id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		r.logger.Error("Failed to delete mapping",
			zap.Error(err),
			zap.String("task_id", taskID),
		)
		return err
	}
	return nil
}
