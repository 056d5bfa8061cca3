package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "smartplanner/contracts/mq"
	"smartplanner/task-service/internal/model"
	"smartplanner/task-service/internal/service"
)

type draftStore struct {
	tasks  []model.Task
	nextID int
}

func (s *draftStore) Insert(ctx context.Context, t *model.Task) error {
	s.nextID++
	t.ID = fmt.Sprintf("task-%d", s.nextID)
	s.tasks = append(s.tasks, *t)
	return nil
}

func (s *draftStore) Update(ctx context.Context, t *model.Task) error { return nil }

func (s *draftStore) Delete(ctx context.Context, taskID, userID string) error { return nil }

func (s *draftStore) FindByID(ctx context.Context, taskID, userID string) (*model.Task, error) {
	return nil, fmt.Errorf("not found")
}

func (s *draftStore) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	var out []model.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishTaskEvent(routingKey string, payload any) error { return nil }

func TestHandleCreatesTaskFromDraft(t *testing.T) {
	store := &draftStore{}
	svc := service.NewTaskService(store, noopPublisher{}, zap.NewNop())
	h := NewTaskCreateHandler(svc, zap.NewNop())

	due := "2026-03-01T09:00:00Z"
	body, err := json.Marshal(mqcontracts.TaskCreateRequestPayload{
		UserID:   "user-1",
		Title:    "Call the dentist",
		Priority: "high",
		DueDate:  &due,
		Source:   "voice",
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), mqcontracts.RoutingKeyTaskCreate, body))

	tasks, err := store.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Call the dentist", tasks[0].Title)
	require.Equal(t, "high", tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
}

func TestHandleAcksMalformedDrafts(t *testing.T) {
	store := &draftStore{}
	svc := service.NewTaskService(store, noopPublisher{}, zap.NewNop())
	h := NewTaskCreateHandler(svc, zap.NewNop())

	// 坏 JSON、缺字段、坏日期都不可重试，返回 nil 让 consumer ack
	cases := []string{
		`{not json`,
		`{"title":"no user"}`,
		`{"userId":"user-1"}`,
		`{"userId":"user-1","title":"x","dueDate":"tomorrow"}`,
	}
	for _, body := range cases {
		require.NoError(t, h.Handle(context.Background(), mqcontracts.RoutingKeyTaskCreate, json.RawMessage(body)))
	}

	tasks, err := store.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, tasks)
}
