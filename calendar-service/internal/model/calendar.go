package model

import "time"

// CalendarToken is the per-user OAuth token record. Created on consent,
// mutated on refresh, deleted on disconnect.
type CalendarToken struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CalendarID   string
}

// Expired reports whether the access token needs a refresh before use.
func (t *CalendarToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TaskCalendarMapping links a task to its external calendar event. At most
// one mapping exists per (TaskID, UserID). Presence is a soft guarantee that
// the remote event exists, not a transactional one.
type TaskCalendarMapping struct {
	TaskID        string
	UserID        string
	GoogleEventID string
	CalendarID    string
	CreatedAt     time.Time
}
