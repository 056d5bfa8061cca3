package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/model"
)

type fakeTokenStore struct {
	records map[string]*model.CalendarToken
	upserts int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{records: make(map[string]*model.CalendarToken)}
}

func (s *fakeTokenStore) FindByUserID(ctx context.Context, userID string) (*model.CalendarToken, error) {
	r, ok := s.records[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s *fakeTokenStore) Upsert(ctx context.Context, t *model.CalendarToken) error {
	s.upserts++
	cp := *t
	s.records[t.UserID] = &cp
	return nil
}

func (s *fakeTokenStore) DeleteByUserID(ctx context.Context, userID string) error {
	delete(s.records, userID)
	return nil
}

type fakeGoogle struct {
	refreshCalls  int
	refreshResp   *TokenResponse
	refreshErr    error
	exchangeResp  *TokenResponse
	insertedWith  string // access token seen by InsertEvent
	insertEventID string
}

func (g *fakeGoogle) AuthURL(userID string) string { return "https://accounts.example/auth" }

func (g *fakeGoogle) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	return g.exchangeResp, nil
}

func (g *fakeGoogle) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	g.refreshCalls++
	if g.refreshErr != nil {
		return nil, g.refreshErr
	}
	return g.refreshResp, nil
}

func (g *fakeGoogle) InsertEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error) {
	g.insertedWith = accessToken
	return g.insertEventID, nil
}

func (g *fakeGoogle) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev EventInput) error {
	return nil
}

func (g *fakeGoogle) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	return nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestHandleCallbackStoresToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeTokenStore()
	google := &fakeGoogle{exchangeResp: &TokenResponse{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
	}}
	svc := NewCalendarService(store, google, zap.NewNop()).WithClock(fixedClock(now))

	require.NoError(t, svc.HandleCallback(context.Background(), "code", "user-1"))

	record := store.records["user-1"]
	require.NotNil(t, record)
	require.Equal(t, "access-1", record.AccessToken)
	require.Equal(t, "refresh-1", record.RefreshToken)
	require.Equal(t, "primary", record.CalendarID)
	require.Equal(t, now.Add(time.Hour), record.ExpiresAt)

	connected, err := svc.IsConnected(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, connected)
}

func TestCreateEventRequiresConnection(t *testing.T) {
	svc := NewCalendarService(newFakeTokenStore(), &fakeGoogle{}, zap.NewNop())

	_, _, err := svc.CreateEvent(context.Background(), "user-1", "t", "", time.Now())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestCreateEventUsesFreshTokenWithoutRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeTokenStore()
	store.records["user-1"] = &model.CalendarToken{
		UserID:      "user-1",
		AccessToken: "access-1",
		ExpiresAt:   now.Add(30 * time.Minute),
		CalendarID:  "primary",
	}
	google := &fakeGoogle{insertEventID: "ev-1"}
	svc := NewCalendarService(store, google, zap.NewNop()).WithClock(fixedClock(now))

	eventID, calendarID, err := svc.CreateEvent(context.Background(), "user-1", "t", "", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "ev-1", eventID)
	require.Equal(t, "primary", calendarID)
	require.Equal(t, "access-1", google.insertedWith)
	require.Zero(t, google.refreshCalls)
}

func TestExpiredTokenRefreshedOncePersistedBeforeCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeTokenStore()
	store.records["user-1"] = &model.CalendarToken{
		UserID:       "user-1",
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
		CalendarID:   "primary",
	}
	google := &fakeGoogle{
		insertEventID: "ev-1",
		refreshResp: &TokenResponse{
			AccessToken:  "fresh",
			RefreshToken: "refresh-2", // rotated
			ExpiresIn:    3600,
		},
	}
	svc := NewCalendarService(store, google, zap.NewNop()).WithClock(fixedClock(now))

	_, _, err := svc.CreateEvent(context.Background(), "user-1", "t", "", now.Add(time.Hour))
	require.NoError(t, err)

	require.Equal(t, 1, google.refreshCalls)
	require.Equal(t, "fresh", google.insertedWith)

	// 新 token 先落库再调外部接口
	require.Equal(t, 1, store.upserts)
	record := store.records["user-1"]
	require.Equal(t, "fresh", record.AccessToken)
	require.Equal(t, "refresh-2", record.RefreshToken)
	require.Equal(t, now.Add(time.Hour), record.ExpiresAt)
}

func TestRefreshFailurePropagates(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeTokenStore()
	store.records["user-1"] = &model.CalendarToken{
		UserID:       "user-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
	}
	google := &fakeGoogle{refreshErr: errors.New("invalid_grant")}
	svc := NewCalendarService(store, google, zap.NewNop()).WithClock(fixedClock(now))

	_, _, err := svc.CreateEvent(context.Background(), "user-1", "t", "", now)
	require.Error(t, err)
	require.Zero(t, store.upserts)
}

func TestDisconnectRemovesToken(t *testing.T) {
	store := newFakeTokenStore()
	store.records["user-1"] = &model.CalendarToken{UserID: "user-1"}
	svc := NewCalendarService(store, &fakeGoogle{}, zap.NewNop())

	require.NoError(t, svc.Disconnect(context.Background(), "user-1"))

	connected, err := svc.IsConnected(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, connected)
}
