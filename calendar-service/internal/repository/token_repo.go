package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/model"
)

type TokenRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTokenRepository(db *pgxpool.Pool, logger *zap.Logger) *TokenRepository {
	return &TokenRepository{db: db, logger: logger}
}

// FindByUserID returns pgx.ErrNoRows when the user never connected a calendar.
func (r *TokenRepository) FindByUserID(ctx context.Context, userID string) (*model.CalendarToken, error) {
	query := `
        SELECT user_id, access_token, refresh_token, expires_at, calendar_id
        FROM user_calendar_tokens
        WHERE user_id = $1
    `
	var t model.CalendarToken
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&t.UserID,
		&t.AccessToken,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.CalendarID,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert stores the token record on OAuth consent, replacing any prior one.
func (r *TokenRepository) Upsert(ctx context.Context, t *model.CalendarToken) error {
	r.logger.Debug("Upserting calendar token", zap.String("user_id", t.UserID))
	query := `
        INSERT INTO user_calendar_tokens (user_id, access_token, refresh_token, expires_at, calendar_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE
        SET access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            expires_at = EXCLUDED.expires_at,
            calendar_id = EXCLUDED.calendar_id
    `
	_, err := r.db.Exec(ctx, query,
		t.UserID,
		t.AccessToken,
		t.RefreshToken,
		t.ExpiresAt,
		t.CalendarID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert calendar token",
			zap.Error(err),
			zap.String("user_id", t.UserID),
		)
		return err
	}
	r.logger.Info("Calendar token stored", zap.String("user_id", t.UserID))
	return nil
}

func (r *TokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	r.logger.Debug("Deleting calendar token", zap.String("user_id", userID))
	_, err := r.db.Exec(ctx, `DELETE FROM user_calendar_tokens WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("Failed to delete calendar token",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return err
	}
	r.logger.Info("Calendar disconnected", zap.String("user_id", userID))
	return nil
}
