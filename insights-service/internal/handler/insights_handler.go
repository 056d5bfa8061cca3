package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
)

// NotificationPublisher publishes to the notifications fanout exchange.
type NotificationPublisher interface {
	PublishNotification(payload any) error
}

type InsightsHandler struct {
	cache     *cache.TaskCache
	publisher NotificationPublisher
	logger    *zap.Logger
}

func NewInsightsHandler(c *cache.TaskCache, pub NotificationPublisher, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{cache: c, publisher: pub, logger: logger}
}

type upcomingTaskResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	DueDate  string `json:"dueDate"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// userID 从网关注入的 header 取用户身份（认证在网关完成）
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}

// GetAnalytics computes the analytics views for one user and fans out an
// INSIGHTS_UPDATE so connected clients can refresh their dashboards.
func (h *InsightsHandler) GetAnalytics(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	now := time.Now()
	analytics := h.cache.Analytics(uid, now)

	payload := contracts.NotificationPayload{
		Type:      contracts.NotificationInsightsUpdate,
		UserID:    uid,
		Message:   fmt.Sprintf("You have %d tasks, %d overdue", analytics.Total, analytics.OverdueCount),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if err := h.publisher.PublishNotification(payload); err != nil {
		// 通知失败不影响查询结果
		h.logger.Warn("Failed to publish insights update",
			zap.String("user_id", uid),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, analytics)
}

// GetUpcoming returns the user's incomplete tasks due in the next 24 hours.
func (h *InsightsHandler) GetUpcoming(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	tasks := h.cache.Upcoming(uid, time.Now())
	out := make([]upcomingTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, upcomingTaskResponse{
			ID:       t.ID,
			Title:    t.Title,
			DueDate:  t.DueDate.UTC().Format(time.RFC3339),
			Priority: t.Priority,
			Status:   t.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}
