package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smartplanner/pkg/config"
	"smartplanner/pkg/metrics"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultCalendarURL = "https://www.googleapis.com/calendar/v3"

	calendarScope = "https://www.googleapis.com/auth/calendar.events"
)

// GoogleClient talks to the Google OAuth token endpoint and the Calendar v3
// REST API. It holds no per-user state; tokens are passed in per call.
type GoogleClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	calendarURL  string
	httpClient   *http.Client
}

func NewGoogleClient(cfg config.GoogleConfig) *GoogleClient {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	calendarURL := cfg.CalendarURL
	if calendarURL == "" {
		calendarURL = defaultCalendarURL
	}
	return &GoogleClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		tokenURL:     tokenURL,
		calendarURL:  calendarURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second, // 外部调用超时，避免堵死整个 consumer
		},
	}
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// EventInput is the calendar event shape derived from a task. Events span
// one hour starting at the task's due date.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
}

// AuthURL builds the consent URL. The userId travels in the state parameter.
func (c *GoogleClient) AuthURL(userID string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", calendarScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", userID)
	return defaultAuthURL + "?" + q.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("redirect_uri", c.redirectURI)
	return c.postToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a fresh access token.
func (c *GoogleClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	return c.postToken(ctx, form)
}

func (c *GoogleClient) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCalendarCallLatency("refresh", "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.RecordCalendarCallLatency("refresh", "5xx", time.Since(start))
		// 可重试错误
		return nil, fmt.Errorf("token endpoint 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.RecordCalendarCallLatency("refresh", "4xx", time.Since(start))
		// invalid_grant 等 4xx 不可重试
		return nil, fmt.Errorf("token endpoint error %d: %s", resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	metrics.RecordCalendarCallLatency("refresh", "ok", time.Since(start))
	return &token, nil
}

type calendarEventBody struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Start       calendarEventTime `json:"start"`
	End         calendarEventTime `json:"end"`
}

type calendarEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func eventBody(ev EventInput) calendarEventBody {
	start := ev.Start.UTC()
	end := start.Add(time.Hour)
	return calendarEventBody{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       calendarEventTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         calendarEventTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
	}
}

// InsertEvent creates a calendar event and returns the external event id.
func (c *GoogleClient) InsertEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.calendarURL, url.PathEscape(calendarID))

	var created struct {
		ID string `json:"id"`
	}
	if err := c.doCalendar(ctx, "create", http.MethodPost, endpoint, accessToken, eventBody(ev), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateEvent updates an existing event in place.
func (c *GoogleClient) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev EventInput) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.calendarURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.doCalendar(ctx, "update", http.MethodPut, endpoint, accessToken, eventBody(ev), nil)
}

// DeleteEvent removes an event.
func (c *GoogleClient) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.calendarURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.doCalendar(ctx, "delete", http.MethodDelete, endpoint, accessToken, nil, nil)
}

func (c *GoogleClient) doCalendar(ctx context.Context, operation, method, endpoint, accessToken string, body any, out any) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCalendarCallLatency(operation, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.RecordCalendarCallLatency(operation, "5xx", time.Since(start))
		return fmt.Errorf("calendar api 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.RecordCalendarCallLatency(operation, "4xx", time.Since(start))
		return fmt.Errorf("calendar api error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	metrics.RecordCalendarCallLatency(operation, "ok", time.Since(start))
	return nil
}
