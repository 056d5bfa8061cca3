package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartplanner/pkg/config"
	"smartplanner/pkg/util"
)

func newTestClient(tokenURL, calendarURL string) *GoogleClient {
	return NewGoogleClient(config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost/callback",
		TokenURL:     tokenURL,
		CalendarURL:  calendarURL,
	})
}

func TestAuthURLCarriesUserInState(t *testing.T) {
	c := newTestClient("", "")
	u := c.AuthURL("user-1")
	require.Contains(t, u, "state=user-1")
	require.Contains(t, u, "access_type=offline")
	require.Contains(t, u, "client_id=client-id")
}

func TestRefreshTokenParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "fresh", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	token, err := c.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "fresh", token.AccessToken)
	require.Equal(t, 3600, token.ExpiresIn)
}

func TestTokenEndpoint5xxIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.RefreshToken(context.Background(), "refresh-1")
	require.Error(t, err)

	retryable, _ := util.IsRetryableError(err)
	require.True(t, retryable)
}

func TestInvalidGrantIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.RefreshToken(context.Background(), "refresh-1")
	require.Error(t, err)

	retryable, errType := util.IsRetryableError(err)
	require.False(t, retryable)
	require.Equal(t, "oauth_invalid_grant", errType)
}

func TestInsertEventOneHourSpan(t *testing.T) {
	var got calendarEventBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/calendars/primary/events", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"id": "ev-1"})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eventID, err := c.InsertEvent(context.Background(), "access-1", "primary", EventInput{
		Title: "Review report",
		Start: start,
	})
	require.NoError(t, err)
	require.Equal(t, "ev-1", eventID)
	require.Equal(t, "Review report", got.Summary)
	require.Equal(t, "2026-03-01T12:00:00Z", got.Start.DateTime)
	require.Equal(t, "2026-03-01T13:00:00Z", got.End.DateTime)
	require.Equal(t, "UTC", got.Start.TimeZone)
}

func TestCalendar5xxIsRetryable4xxIsNot(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	err := c.DeleteEvent(context.Background(), "access-1", "primary", "ev-1")
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	require.True(t, retryable)

	status = http.StatusNotFound
	err = c.DeleteEvent(context.Background(), "access-1", "primary", "ev-1")
	require.Error(t, err)
	retryable, _ = util.IsRetryableError(err)
	require.False(t, retryable)
}
