package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
)

type capturePublisher struct {
	payloads []contracts.NotificationPayload
}

func (p *capturePublisher) PublishNotification(payload any) error {
	p.payloads = append(p.payloads, payload.(contracts.NotificationPayload))
	return nil
}

func newTestRouter(c *cache.TaskCache, pub NotificationPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewInsightsHandler(c, pub, zap.NewNop())
	r := gin.New()
	r.GET("/insights/analytics", h.GetAnalytics)
	r.GET("/insights/upcoming", h.GetUpcoming)
	return r
}

func TestGetAnalyticsPublishesInsightsUpdate(t *testing.T) {
	c := cache.NewTaskCache()
	overdue := time.Now().Add(-time.Hour)
	c.Upsert(cache.TaskSnapshot{ID: "a", UserID: "user-1", Status: "pending", Priority: "high", DueDate: &overdue})

	pub := &capturePublisher{}
	r := newTestRouter(c, pub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/insights/analytics?user_id=user-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got cache.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, 1, got.Total)
	require.Equal(t, 1, got.OverdueCount)

	require.Len(t, pub.payloads, 1)
	require.Equal(t, contracts.NotificationInsightsUpdate, pub.payloads[0].Type)
	require.Equal(t, "user-1", pub.payloads[0].UserID)
}

func TestGetAnalyticsRequiresUser(t *testing.T) {
	r := newTestRouter(cache.NewTaskCache(), &capturePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/insights/analytics", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUpcomingAcceptsUserHeader(t *testing.T) {
	c := cache.NewTaskCache()
	soon := time.Now().Add(2 * time.Hour)
	c.Upsert(cache.TaskSnapshot{ID: "a", UserID: "user-1", Title: "x", Status: "pending", Priority: "low", DueDate: &soon})

	r := newTestRouter(c, &capturePublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/insights/upcoming", nil)
	req.Header.Set("X-User-ID", "user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tasks []upcomingTaskResponse `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	require.Equal(t, "a", body.Tasks[0].ID)
}
