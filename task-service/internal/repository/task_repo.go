package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"smartplanner/task-service/internal/model"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.String("user_id", t.UserID),
		zap.String("title", t.Title),
	)
	query := `
        INSERT INTO tasks (user_id, title, description, status, priority, due_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.UserID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueDate,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("user_id", t.UserID),
		)
		return err
	}
	r.logger.Info("Task inserted successfully",
		zap.String("task_id", t.ID),
		zap.String("user_id", t.UserID),
	)
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Updating task", zap.String("task_id", t.ID))
	query := `
        UPDATE tasks
        SET title = $1, description = $2, status = $3, priority = $4,
            due_date = $5, completed_at = $6, updated_at = NOW()
        WHERE id = $7 AND user_id = $8
        RETURNING updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueDate,
		t.CompletedAt,
		t.ID,
		t.UserID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Error(err),
			zap.String("task_id", t.ID),
		)
		return err
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, taskID, userID string) error {
	r.logger.Debug("Deleting task", zap.String("task_id", taskID))
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.Error(err),
			zap.String("task_id", taskID),
		)
		return err
	}
	r.logger.Info("Task deleted",
		zap.String("task_id", taskID),
		zap.Int64("rows_affected", result.RowsAffected()),
	)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID, userID string) (*model.Task, error) {
	query := `
        SELECT id, user_id, title, description, status, priority,
               due_date, completed_at, created_at, updated_at
        FROM tasks
        WHERE id = $1 AND user_id = $2
    `
	var t model.Task
	err := r.db.QueryRow(ctx, query, taskID, userID).Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.DueDate,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	r.logger.Debug("Listing tasks for user", zap.String("user_id", userID))
	query := `
        SELECT id, user_id, title, description, status, priority,
               due_date, completed_at, created_at, updated_at
        FROM tasks
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Title,
			&t.Description,
			&t.Status,
			&t.Priority,
			&t.DueDate,
			&t.CompletedAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan task row",
				zap.Error(err),
				zap.String("user_id", userID),
			)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
