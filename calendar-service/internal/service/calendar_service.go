package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/model"
	"smartplanner/pkg/logger"
)

// ErrNotConnected marks a user without a stored calendar token. Handlers
// treat it as a defined skip, not a failure.
var ErrNotConnected = errors.New("user not connected to google calendar")

// TokenStore persists per-user OAuth token records.
type TokenStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.CalendarToken, error)
	Upsert(ctx context.Context, t *model.CalendarToken) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// GoogleAPI is the external calendar collaborator.
type GoogleAPI interface {
	AuthURL(userID string) string
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	InsertEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error)
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev EventInput) error
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// Clock is injected so token expiry is testable.
type Clock func() time.Time

type CalendarService struct {
	tokens TokenStore
	api    GoogleAPI
	now    Clock
	logger *zap.Logger
}

func NewCalendarService(tokens TokenStore, api GoogleAPI, log *zap.Logger) *CalendarService {
	return &CalendarService{
		tokens: tokens,
		api:    api,
		now:    time.Now,
		logger: log,
	}
}

// WithClock overrides the time source.
func (s *CalendarService) WithClock(now Clock) *CalendarService {
	s.now = now
	return s
}

func (s *CalendarService) AuthURL(userID string) string {
	return s.api.AuthURL(userID)
}

// HandleCallback exchanges the consent code and stores the token record.
func (s *CalendarService) HandleCallback(ctx context.Context, code, userID string) error {
	token, err := s.api.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	expiresAt := s.now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.ExpiresIn == 0 {
		expiresAt = s.now().UTC().Add(time.Hour)
	}

	err = s.tokens.Upsert(ctx, &model.CalendarToken{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
		CalendarID:   "primary",
	})
	if err != nil {
		return err
	}

	s.logger.Info("User connected to Google Calendar", zap.String("user_id", userID))
	return nil
}

func (s *CalendarService) Disconnect(ctx context.Context, userID string) error {
	return s.tokens.DeleteByUserID(ctx, userID)
}

func (s *CalendarService) IsConnected(ctx context.Context, userID string) (bool, error) {
	_, err := s.tokens.FindByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ensureToken loads the token record and refreshes it when expired. The new
// access token (and a rotated refresh token, if Google returned one) is
// persisted BEFORE the caller proceeds to the external call. No lock
// serializes concurrent refreshes for the same user.
func (s *CalendarService) ensureToken(ctx context.Context, userID string) (*model.CalendarToken, error) {
	record, err := s.tokens.FindByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	if !record.Expired(s.now()) {
		return record, nil
	}

	logger.WithTrace(ctx, s.logger).Info("Access token expired, refreshing",
		zap.String("user_id", userID),
	)

	token, err := s.api.RefreshToken(ctx, record.RefreshToken)
	if err != nil {
		return nil, err
	}

	record.AccessToken = token.AccessToken
	record.ExpiresAt = s.now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.ExpiresIn == 0 {
		record.ExpiresAt = s.now().UTC().Add(time.Hour)
	}
	if token.RefreshToken != "" {
		record.RefreshToken = token.RefreshToken
	}

	if err := s.tokens.Upsert(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// CreateEvent creates the external event for a task and returns its id.
func (s *CalendarService) CreateEvent(ctx context.Context, userID, title, description string, due time.Time) (string, string, error) {
	record, err := s.ensureToken(ctx, userID)
	if err != nil {
		return "", "", err
	}

	eventID, err := s.api.InsertEvent(ctx, record.AccessToken, record.CalendarID, EventInput{
		Title:       title,
		Description: description,
		Start:       due,
	})
	if err != nil {
		return "", "", err
	}

	logger.WithTrace(ctx, s.logger).Info("Created calendar event",
		zap.String("user_id", userID),
		zap.String("google_event_id", eventID),
	)
	return eventID, record.CalendarID, nil
}

func (s *CalendarService) UpdateEvent(ctx context.Context, userID, eventID, title, description string, due time.Time) error {
	record, err := s.ensureToken(ctx, userID)
	if err != nil {
		return err
	}

	err = s.api.UpdateEvent(ctx, record.AccessToken, record.CalendarID, eventID, EventInput{
		Title:       title,
		Description: description,
		Start:       due,
	})
	if err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Updated calendar event",
		zap.String("user_id", userID),
		zap.String("google_event_id", eventID),
	)
	return nil
}

func (s *CalendarService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	record, err := s.ensureToken(ctx, userID)
	if err != nil {
		return err
	}

	err = s.api.DeleteEvent(ctx, record.AccessToken, record.CalendarID, eventID)
	if err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Deleted calendar event",
		zap.String("user_id", userID),
		zap.String("google_event_id", eventID),
	)
	return nil
}
