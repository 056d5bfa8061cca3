package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
)

type capturePublisher struct {
	payloads []contracts.NotificationPayload
	err      error
}

func (p *capturePublisher) PublishNotification(payload any) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload.(contracts.NotificationPayload))
	return nil
}

func fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestReminderFiresForTasksDueInTenMinutes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dueAt := now.Add(10 * time.Minute)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "task-1", UserID: "user-1", Title: "Standup", Status: "pending", Priority: "high", DueDate: &dueAt})

	pub := &capturePublisher{}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.CheckUpcomingTasks()

	require.Len(t, pub.payloads, 1)
	p := pub.payloads[0]
	require.Equal(t, contracts.NotificationTaskReminder, p.Type)
	require.Equal(t, "user-1", p.UserID)
	require.NotNil(t, p.Task)
	require.Equal(t, "task-1", p.Task.ID)
	require.Equal(t, "high", p.Task.Priority)
}

func TestReminderNotDuplicatedAcrossScans(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dueAt := now.Add(10*time.Minute + 30*time.Second)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "task-1", UserID: "user-1", Title: "Standup", Status: "pending", DueDate: &dueAt})

	pub := &capturePublisher{}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.CheckUpcomingTasks()
	s.CheckUpcomingTasks()
	require.Len(t, pub.payloads, 1)

	// 清理后可再次提醒
	s.ClearNotified()
	s.CheckUpcomingTasks()
	require.Len(t, pub.payloads, 2)
}

func TestReminderSkipsOutsideWindowAndCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tooSoon := now.Add(9 * time.Minute)
	tooLate := now.Add(11 * time.Minute)
	inWindow := now.Add(10 * time.Minute)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "soon", UserID: "u", Status: "pending", DueDate: &tooSoon})
	c.Upsert(cache.TaskSnapshot{ID: "late", UserID: "u", Status: "pending", DueDate: &tooLate})
	c.Upsert(cache.TaskSnapshot{ID: "done", UserID: "u", Status: "completed", DueDate: &inWindow})

	pub := &capturePublisher{}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.CheckUpcomingTasks()
	require.Empty(t, pub.payloads)
}

func TestPublishFailureAllowsRetryOnNextScan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dueAt := now.Add(10 * time.Minute)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "task-1", UserID: "user-1", Title: "x", Status: "pending", DueDate: &dueAt})

	pub := &capturePublisher{err: errors.New("broker down")}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.CheckUpcomingTasks()
	require.Empty(t, pub.payloads)
}

func TestMorningSummaryPerUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	today := now.Add(4 * time.Hour)
	tomorrow := now.Add(30 * time.Hour)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "a", UserID: "user-1", Status: "pending", DueDate: &today})
	c.Upsert(cache.TaskSnapshot{ID: "b", UserID: "user-1", Status: "in_progress"})
	c.Upsert(cache.TaskSnapshot{ID: "c", UserID: "user-1", Status: "completed", DueDate: &today})
	c.Upsert(cache.TaskSnapshot{ID: "d", UserID: "user-1", Status: "pending", DueDate: &tomorrow})
	c.Upsert(cache.TaskSnapshot{ID: "e", UserID: "user-2", Status: "pending"})

	pub := &capturePublisher{}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.SendMorningSummaries()
	require.Len(t, pub.payloads, 2)

	byUser := make(map[string]contracts.NotificationPayload)
	for _, p := range pub.payloads {
		require.Equal(t, contracts.NotificationMorningSummary, p.Type)
		byUser[p.UserID] = p
	}

	u1 := byUser["user-1"]
	require.NotNil(t, u1.Summary)
	require.Equal(t, 2, u1.Summary.TotalPending)
	require.Equal(t, 1, u1.Summary.TotalInProgress)
	require.Equal(t, 1, u1.Summary.DueToday)

	u2 := byUser["user-2"]
	require.NotNil(t, u2.Summary)
	require.Equal(t, 1, u2.Summary.TotalPending)
	require.Equal(t, 0, u2.Summary.DueToday)
}

func TestMorningSummarySkipsUsersWithNothingToReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	c := cache.NewTaskCache()
	c.Upsert(cache.TaskSnapshot{ID: "a", UserID: "user-1", Status: "completed"})

	pub := &capturePublisher{}
	s := NewReminderScheduler(c, pub, 8, zap.NewNop()).WithClock(fixed(now))

	s.SendMorningSummaries()
	require.Empty(t, pub.payloads)
}
