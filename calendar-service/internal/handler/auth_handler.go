package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartplanner/calendar-service/internal/service"
)

// AuthHandler drives the calendar OAuth token lifecycle: consent URL,
// callback, status, disconnect.
type AuthHandler struct {
	calendar *service.CalendarService
	logger   *zap.Logger
}

func NewAuthHandler(calendar *service.CalendarService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{calendar: calendar, logger: logger}
}

func (h *AuthHandler) AuthURL(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.calendar.AuthURL(userID)})
}

// Callback is the OAuth redirect target. The userId travels in state.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	userID := c.Query("state")
	if code == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state required"})
		return
	}

	if err := h.calendar.HandleCallback(c.Request.Context(), code, userID); err != nil {
		h.logger.Error("OAuth callback failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect calendar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

func (h *AuthHandler) Status(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	connected, err := h.calendar.IsConnected(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

func (h *AuthHandler) Disconnect(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	if err := h.calendar.Disconnect(c.Request.Context(), userID); err != nil {
		h.logger.Error("Disconnect failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
