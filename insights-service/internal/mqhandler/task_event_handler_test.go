package mqhandler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/insights-service/internal/cache"
)

func marshal(t *testing.T, p contracts.TaskEventPayload) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return body
}

func TestCreatedAndUpdatedUpsert(t *testing.T) {
	c := cache.NewTaskCache()
	h := NewTaskEventHandler(c, zap.NewNop())
	ctx := context.Background()

	due := "2026-03-01T12:00:00Z"
	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskCreated, marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1", Title: "draft", Status: "pending", Priority: "low", DueDate: &due,
	})))

	tasks := c.TasksByUser("user-1")
	require.Len(t, tasks, 1)
	require.Equal(t, "draft", tasks[0].Title)
	require.NotNil(t, tasks[0].DueDate)

	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskUpdated, marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1", Title: "final", Status: "in_progress", Priority: "high",
	})))

	tasks = c.TasksByUser("user-1")
	require.Len(t, tasks, 1)
	require.Equal(t, "final", tasks[0].Title)
	require.Equal(t, "in_progress", tasks[0].Status)
	require.Nil(t, tasks[0].DueDate)
}

func TestDefaultsAppliedToBareEvents(t *testing.T) {
	c := cache.NewTaskCache()
	h := NewTaskEventHandler(c, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), contracts.RoutingKeyTaskCreated, marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1", Title: "x",
	})))

	tasks := c.TasksByUser("user-1")
	require.Len(t, tasks, 1)
	require.Equal(t, "pending", tasks[0].Status)
	require.Equal(t, "medium", tasks[0].Priority)
}

func TestDeletedRemovesFromCache(t *testing.T) {
	c := cache.NewTaskCache()
	h := NewTaskEventHandler(c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskCreated, marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1", Title: "x",
	})))
	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskDeleted, marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1",
	})))

	require.Empty(t, c.TasksByUser("user-1"))
}

func TestMalformedEventsAlwaysAcked(t *testing.T) {
	c := cache.NewTaskCache()
	h := NewTaskEventHandler(c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskCreated, json.RawMessage(`{not json`)))
	require.NoError(t, h.Handle(ctx, contracts.RoutingKeyTaskCreated, json.RawMessage(`{"taskId":"x"}`)))
	require.NoError(t, h.Handle(ctx, "task.archived", marshal(t, contracts.TaskEventPayload{
		TaskID: "task-1", UserID: "user-1",
	})))

	require.Empty(t, c.TasksByUser("user-1"))
}
