package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskCreatedEvent is emitted when a task is created.
type TaskCreatedEvent struct {
	TaskID      uint      `json:"task_id"`
	OwnerID     uint      `json:"owner_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskCreatedV1 is the typed event definition for task creation.
// Subject: events.task.v1.task-created
var TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
	"task", "TaskCreated", "v1",
)

// TaskStatusChangedEvent is emitted when an update moves a task to another status.
type TaskStatusChangedEvent struct {
	TaskID    uint      `json:"task_id"`
	OwnerID   uint      `json:"owner_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// TaskStatusChangedV1 is the typed event definition for status transitions.
// Subject: events.task.v1.task-status-changed
var TaskStatusChangedV1 = helper.EventDefinition[TaskStatusChangedEvent](
	"task", "TaskStatusChanged", "v1",
)

// TaskCompletedEvent is emitted whenever an update leaves a task Done.
type TaskCompletedEvent struct {
	TaskID      uint          `json:"task_id"`
	OwnerID     uint          `json:"owner_id"`
	TotalTime   time.Duration `json:"total_time"`
	CompletedAt time.Time     `json:"completed_at"`
}

// TaskCompletedV1 is the typed event definition for task completion.
// Subject: events.task.v1.task-completed
var TaskCompletedV1 = helper.EventDefinition[TaskCompletedEvent](
	"task", "TaskCompleted", "v1",
)

// TaskDeletedEvent is emitted when a task is deleted.
type TaskDeletedEvent struct {
	TaskID    uint      `json:"task_id"`
	OwnerID   uint      `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TaskDeletedV1 is the typed event definition for task deletion.
// Subject: events.task.v1.task-deleted
var TaskDeletedV1 = helper.EventDefinition[TaskDeletedEvent](
	"task", "TaskDeleted", "v1",
)
