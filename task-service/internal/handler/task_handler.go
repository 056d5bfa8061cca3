package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"smartplanner/task-service/internal/model"
	"smartplanner/task-service/internal/service"
)

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	// DueDate: absent = unchanged, null = cleared, value = set
	DueDate      *string `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
}

type taskResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
	CompletedAt *string `json:"completedAt"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// userID 从网关注入的 header 取用户身份（认证在网关完成）
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	due, ok := parseDueDate(req.DueDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
		return
	}

	t, err := h.tasks.Create(c.Request.Context(), uid, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     due,
	})
	if err != nil {
		h.logger.Error("CreateTask failed",
			zap.String("user_id", uid),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, toResponse(t))
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("ListTasks failed",
			zap.String("user_id", uid),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	t, err := h.tasks.Get(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}
	c.JSON(http.StatusOK, toResponse(t))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	due, ok := parseDueDate(req.DueDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
		return
	}

	t, err := h.tasks.Update(c.Request.Context(), c.Param("id"), uid, service.UpdateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      due,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("UpdateTask failed",
			zap.String("task_id", c.Param("id")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}
	c.JSON(http.StatusOK, toResponse(t))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), c.Param("id"), uid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("DeleteTask failed",
			zap.String("task_id", c.Param("id")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseDueDate(raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func toResponse(t *model.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.DueDate != nil {
		s := t.DueDate.UTC().Format(time.RFC3339)
		resp.DueDate = &s
	}
	if t.CompletedAt != nil {
		s := t.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}
