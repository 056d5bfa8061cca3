package mq

import "fmt"

// NotificationType is the tagged kind of a notification event. New kinds must
// be added here and to ClientEvent so dispatch stays exhaustive.
type NotificationType string

const (
	NotificationTaskReminder   NotificationType = "TASK_REMINDER"
	NotificationMorningSummary NotificationType = "MORNING_SUMMARY"
	NotificationInsightsUpdate NotificationType = "INSIGHTS_UPDATE"
)

// ClientEvent returns the websocket event name pushed to clients.
func (t NotificationType) ClientEvent() (string, error) {
	switch t {
	case NotificationTaskReminder:
		return "task_reminder", nil
	case NotificationMorningSummary:
		return "morning_summary", nil
	case NotificationInsightsUpdate:
		return "insights_update", nil
	default:
		return "", fmt.Errorf("unknown notification type: %q", string(t))
	}
}

// NotificationTaskRef 通知中附带的任务摘要
type NotificationTaskRef struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	DueDate  *string `json:"dueDate"`
	Priority string  `json:"priority"`
}

// NotificationSummary 晨间汇总的统计字段
type NotificationSummary struct {
	TotalPending    int `json:"totalPending"`
	TotalInProgress int `json:"totalInProgress"`
	DueToday        int `json:"dueToday"`
}

// NotificationPayload 广播到 notifications fanout 交换机的消息体
type NotificationPayload struct {
	Type      NotificationType     `json:"type"`
	UserID    string               `json:"userId"`
	Message   string               `json:"message"`
	Task      *NotificationTaskRef `json:"task,omitempty"`
	Summary   *NotificationSummary `json:"summary,omitempty"`
	Timestamp string               `json:"timestamp"` // RFC 3339
}
