package mq

// Routing keys on the "tasks" topic exchange.
const (
	RoutingKeyTaskCreated = "task.created"
	RoutingKeyTaskUpdated = "task.updated"
	RoutingKeyTaskDeleted = "task.deleted"
	// RoutingKeyTaskCreate carries creation requests (voice drafts) back into
	// the task service, which re-publishes task.created after the commit.
	RoutingKeyTaskCreate = "task.create"
)

// TaskEventPayload 任务生命周期事件的 payload
// task.deleted only carries TaskID and UserID; the other fields are empty.
type TaskEventPayload struct {
	TaskID      string  `json:"taskId"`
	UserID      string  `json:"userId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"` // RFC 3339, nil when the task has no due date
	Priority    string  `json:"priority"`
	Status      string  `json:"status,omitempty"`
}

// TaskCreateRequestPayload is a validated TaskDraft from the voice pipeline.
// Confidence filtering already happened upstream.
type TaskCreateRequestPayload struct {
	UserID      string  `json:"userId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    string  `json:"priority"`
	Source      string  `json:"source"` // voice / manual
}
