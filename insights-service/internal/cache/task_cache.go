package cache

import (
	"sort"
	"sync"
	"time"
)

// TaskSnapshot is the last-known state of a task, rebuilt purely from events.
type TaskSnapshot struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	UpdatedAt   time.Time
}

// Analytics are read-time computed views over the cache.
type Analytics struct {
	Total      int            `json:"total"`
	ByStatus   StatusCounts   `json:"byStatus"`
	ByPriority PriorityCounts `json:"byPriority"`
	// OverdueCount: dueDate < now, status != completed
	OverdueCount int `json:"overdueCount"`
	// UpcomingCount: dueDate within the next 24h, status != completed
	UpcomingCount int `json:"upcomingCount"`
}

type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

type PriorityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
	Urgent int `json:"urgent"`
}

// TaskCache is the per-user materialized task index. It starts empty on every
// process restart and is rebuilt solely from future events; there is no
// backfill, so views are incomplete until enough events arrive. Upserts are
// last-write-wins with no sequence check.
type TaskCache struct {
	mu    sync.RWMutex
	tasks map[string]map[string]TaskSnapshot // userID -> taskID -> snapshot
}

func NewTaskCache() *TaskCache {
	return &TaskCache{
		tasks: make(map[string]map[string]TaskSnapshot),
	}
}

func (c *TaskCache) Upsert(t TaskSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byTask, ok := c.tasks[t.UserID]
	if !ok {
		byTask = make(map[string]TaskSnapshot)
		c.tasks[t.UserID] = byTask
	}
	byTask[t.ID] = t
}

func (c *TaskCache) Delete(userID, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if byTask, ok := c.tasks[userID]; ok {
		delete(byTask, taskID)
		if len(byTask) == 0 {
			delete(c.tasks, userID)
		}
	}
}

func (c *TaskCache) TasksByUser(userID string) []TaskSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TaskSnapshot, 0, len(c.tasks[userID]))
	for _, t := range c.tasks[userID] {
		out = append(out, t)
	}
	return out
}

// AllByUser returns every cached task grouped by user.
func (c *TaskCache) AllByUser() map[string][]TaskSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]TaskSnapshot, len(c.tasks))
	for userID, byTask := range c.tasks {
		tasks := make([]TaskSnapshot, 0, len(byTask))
		for _, t := range byTask {
			tasks = append(tasks, t)
		}
		out[userID] = tasks
	}
	return out
}

// DueInWindow returns tasks across all users with a due date inside
// [from, to) and status != completed.
func (c *TaskCache) DueInWindow(from, to time.Time) []TaskSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []TaskSnapshot
	for _, byTask := range c.tasks {
		for _, t := range byTask {
			if t.DueDate == nil || t.Status == "completed" {
				continue
			}
			if !t.DueDate.Before(from) && t.DueDate.Before(to) {
				out = append(out, t)
			}
		}
	}
	return out
}

// Upcoming returns a user's incomplete tasks due in the next 24 hours,
// sorted by due date.
func (c *TaskCache) Upcoming(userID string, now time.Time) []TaskSnapshot {
	tomorrow := now.Add(24 * time.Hour)

	var out []TaskSnapshot
	for _, t := range c.TasksByUser(userID) {
		if t.DueDate == nil || t.Status == "completed" {
			continue
		}
		if !t.DueDate.Before(now) && !t.DueDate.After(tomorrow) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueDate.Before(*out[j].DueDate)
	})
	return out
}

// Analytics computes the derived views for one user at read time.
func (c *TaskCache) Analytics(userID string, now time.Time) Analytics {
	tasks := c.TasksByUser(userID)

	a := Analytics{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case "pending":
			a.ByStatus.Pending++
		case "in_progress":
			a.ByStatus.InProgress++
		case "completed":
			a.ByStatus.Completed++
		case "cancelled":
			a.ByStatus.Cancelled++
		}
		switch t.Priority {
		case "low":
			a.ByPriority.Low++
		case "medium":
			a.ByPriority.Medium++
		case "high":
			a.ByPriority.High++
		case "urgent":
			a.ByPriority.Urgent++
		}
		if t.DueDate != nil && t.Status != "completed" {
			if t.DueDate.Before(now) {
				a.OverdueCount++
			} else if !t.DueDate.After(now.Add(24 * time.Hour)) {
				a.UpcomingCount++
			}
		}
	}
	return a
}
