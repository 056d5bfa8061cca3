package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func due(t time.Time) *time.Time { return &t }

func TestUpsertLastWriteWins(t *testing.T) {
	c := NewTaskCache()
	c.Upsert(TaskSnapshot{ID: "task-1", UserID: "user-1", Title: "draft", Status: "pending", Priority: "low"})
	c.Upsert(TaskSnapshot{ID: "task-1", UserID: "user-1", Title: "final", Status: "in_progress", Priority: "high"})

	tasks := c.TasksByUser("user-1")
	require.Len(t, tasks, 1)
	require.Equal(t, "final", tasks[0].Title)
	require.Equal(t, "in_progress", tasks[0].Status)
}

func TestDeleteRemovesOnlyOwnEntry(t *testing.T) {
	c := NewTaskCache()
	c.Upsert(TaskSnapshot{ID: "task-1", UserID: "user-1"})
	c.Upsert(TaskSnapshot{ID: "task-2", UserID: "user-1"})
	c.Upsert(TaskSnapshot{ID: "task-3", UserID: "user-2"})

	c.Delete("user-1", "task-1")
	require.Len(t, c.TasksByUser("user-1"), 1)
	require.Len(t, c.TasksByUser("user-2"), 1)

	// 删除不存在的条目是 no-op
	c.Delete("user-1", "task-9")
	c.Delete("user-9", "task-1")
	require.Len(t, c.TasksByUser("user-1"), 1)
}

func TestDueInWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(10 * time.Minute)
	to := now.Add(11 * time.Minute)

	c := NewTaskCache()
	c.Upsert(TaskSnapshot{ID: "at-from", UserID: "u", Status: "pending", DueDate: due(from)})
	c.Upsert(TaskSnapshot{ID: "inside", UserID: "u", Status: "pending", DueDate: due(from.Add(30 * time.Second))})
	c.Upsert(TaskSnapshot{ID: "at-to", UserID: "u", Status: "pending", DueDate: due(to)})
	c.Upsert(TaskSnapshot{ID: "before", UserID: "u", Status: "pending", DueDate: due(now)})
	c.Upsert(TaskSnapshot{ID: "completed", UserID: "u", Status: "completed", DueDate: due(from)})
	c.Upsert(TaskSnapshot{ID: "no-due", UserID: "u", Status: "pending"})

	got := c.DueInWindow(from, to)
	ids := make(map[string]bool)
	for _, s := range got {
		ids[s.ID] = true
	}
	// 窗口左闭右开
	require.True(t, ids["at-from"])
	require.True(t, ids["inside"])
	require.False(t, ids["at-to"])
	require.False(t, ids["before"])
	require.False(t, ids["completed"])
	require.False(t, ids["no-due"])
}

func TestUpcomingSortedByDueDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewTaskCache()
	c.Upsert(TaskSnapshot{ID: "later", UserID: "u", Status: "pending", DueDate: due(now.Add(20 * time.Hour))})
	c.Upsert(TaskSnapshot{ID: "sooner", UserID: "u", Status: "pending", DueDate: due(now.Add(2 * time.Hour))})
	c.Upsert(TaskSnapshot{ID: "too-far", UserID: "u", Status: "pending", DueDate: due(now.Add(30 * time.Hour))})
	c.Upsert(TaskSnapshot{ID: "done", UserID: "u", Status: "completed", DueDate: due(now.Add(time.Hour))})

	got := c.Upcoming("u", now)
	require.Len(t, got, 2)
	require.Equal(t, "sooner", got[0].ID)
	require.Equal(t, "later", got[1].ID)
}

func TestAnalyticsCounts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewTaskCache()
	c.Upsert(TaskSnapshot{ID: "a", UserID: "u", Status: "pending", Priority: "low", DueDate: due(now.Add(-time.Hour))})
	c.Upsert(TaskSnapshot{ID: "b", UserID: "u", Status: "in_progress", Priority: "high", DueDate: due(now.Add(3 * time.Hour))})
	c.Upsert(TaskSnapshot{ID: "c", UserID: "u", Status: "completed", Priority: "medium", DueDate: due(now.Add(-time.Hour))})
	c.Upsert(TaskSnapshot{ID: "d", UserID: "u", Status: "cancelled", Priority: "urgent"})
	c.Upsert(TaskSnapshot{ID: "other", UserID: "someone-else", Status: "pending", Priority: "low"})

	a := c.Analytics("u", now)
	require.Equal(t, 4, a.Total)
	require.Equal(t, 1, a.ByStatus.Pending)
	require.Equal(t, 1, a.ByStatus.InProgress)
	require.Equal(t, 1, a.ByStatus.Completed)
	require.Equal(t, 1, a.ByStatus.Cancelled)
	require.Equal(t, 1, a.ByPriority.Low)
	require.Equal(t, 1, a.ByPriority.High)
	// 已完成任务不算过期
	require.Equal(t, 1, a.OverdueCount)
	require.Equal(t, 1, a.UpcomingCount)
}
