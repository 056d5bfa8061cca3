package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
	"smartplanner/pkg/metrics"
)

// NotificationPublisher publishes to the notifications fanout exchange.
type NotificationPublisher interface {
	PublishNotification(payload any) error
}

// Clock lets tests control time.
type Clock func() time.Time

// ReminderScheduler drives the time-based notifications off the task cache:
// a per-minute scan for tasks due in ten minutes and a daily morning summary.
// Reminder delivery is at-most-once per process: the notified set lives in
// memory and is dropped on restart, and entries are purged hourly so a task
// whose due date moves far enough out can remind again.
type ReminderScheduler struct {
	cache     *cache.TaskCache
	publisher NotificationPublisher
	logger    *zap.Logger
	now       Clock

	morningHour int
	cron        *cron.Cron

	mu       sync.Mutex
	notified map[string]struct{}
}

func NewReminderScheduler(c *cache.TaskCache, pub NotificationPublisher, morningHour int, log *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		cache:       c,
		publisher:   pub,
		logger:      log,
		now:         time.Now,
		morningHour: morningHour,
		notified:    make(map[string]struct{}),
	}
}

// WithClock overrides the time source, for tests.
func (s *ReminderScheduler) WithClock(clock Clock) *ReminderScheduler {
	s.now = clock
	return s
}

// Start registers the cron jobs and begins scheduling.
func (s *ReminderScheduler) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("* * * * *", s.CheckUpcomingTasks); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d * * *", s.morningHour), s.SendMorningSummaries); err != nil {
		return fmt.Errorf("schedule morning summary: %w", err)
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.ClearNotified); err != nil {
		return fmt.Errorf("schedule notified cleanup: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Reminder scheduler started", zap.Int("morning_hour", s.morningHour))
	return nil
}

func (s *ReminderScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// CheckUpcomingTasks scans for incomplete tasks due within [now+10m, now+11m)
// and publishes one TASK_REMINDER per task.
func (s *ReminderScheduler) CheckUpcomingTasks() {
	now := s.now()
	due := s.cache.DueInWindow(now.Add(10*time.Minute), now.Add(11*time.Minute))

	for _, t := range due {
		key := t.ID + "-10min"
		s.mu.Lock()
		_, seen := s.notified[key]
		s.mu.Unlock()
		if seen {
			continue
		}

		dueStr := t.DueDate.UTC().Format(time.RFC3339)
		payload := contracts.NotificationPayload{
			Type:    contracts.NotificationTaskReminder,
			UserID:  t.UserID,
			Message: fmt.Sprintf("Reminder: %q is due in 10 minutes", t.Title),
			Task: &contracts.NotificationTaskRef{
				ID:       t.ID,
				Title:    t.Title,
				DueDate:  &dueStr,
				Priority: t.Priority,
			},
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishNotification(payload); err != nil {
			// 发布失败不记 key，下一轮扫描重试
			s.logger.Error("Failed to publish task reminder",
				zap.String("task_id", t.ID),
				zap.String("user_id", t.UserID),
				zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.notified[key] = struct{}{}
		s.mu.Unlock()
		s.logger.Info("Task reminder published",
			zap.String("task_id", t.ID),
			zap.String("user_id", t.UserID))
	}
}

// SendMorningSummaries publishes a MORNING_SUMMARY for every user with
// cached tasks.
func (s *ReminderScheduler) SendMorningSummaries() {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	for userID, tasks := range s.cache.AllByUser() {
		var summary contracts.NotificationSummary
		for _, t := range tasks {
			switch t.Status {
			case "pending":
				summary.TotalPending++
			case "in_progress":
				summary.TotalInProgress++
			}
			if t.DueDate != nil && t.Status != "completed" &&
				!t.DueDate.Before(startOfDay) && t.DueDate.Before(endOfDay) {
				summary.DueToday++
			}
		}
		if summary.TotalPending == 0 && summary.TotalInProgress == 0 && summary.DueToday == 0 {
			continue
		}

		payload := contracts.NotificationPayload{
			Type:   contracts.NotificationMorningSummary,
			UserID: userID,
			Message: fmt.Sprintf("Good morning! You have %d pending tasks, %d due today",
				summary.TotalPending, summary.DueToday),
			Summary:   &summary,
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishNotification(payload); err != nil {
			s.logger.Error("Failed to publish morning summary",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		s.logger.Info("Morning summary published", zap.String("user_id", userID))
	}
	metrics.RecordSchedulerRun("morning_summary")
}

// ClearNotified drops all reminder dedupe keys.
func (s *ReminderScheduler) ClearNotified() {
	s.mu.Lock()
	n := len(s.notified)
	s.notified = make(map[string]struct{})
	s.mu.Unlock()
	s.logger.Info("Cleared reminder dedupe keys", zap.Int("count", n))
}
