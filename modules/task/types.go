package task

import (
	"time"

	domain "github.com/example/task-tracker/domain/task"
)

// CreateTaskRequest is the request for creating a task.
type CreateTaskRequest struct {
	Token       string `json:"token"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListTasksRequest is the request for listing the caller's tasks.
type ListTasksRequest struct {
	Token string `json:"token"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// GetTaskRequest is the request for getting a task.
type GetTaskRequest struct {
	Token  string `json:"token"`
	TaskID uint   `json:"task_id"`
}

// UpdateTaskRequest is the request for updating a task. All three fields
// are replaced.
type UpdateTaskRequest struct {
	Token       string `json:"token"`
	TaskID      uint   `json:"task_id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	Token  string `json:"token"`
	TaskID uint   `json:"task_id"`
}

// DeleteTaskResponse is the response for deleting a task.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// TaskResponse is the response for a single task.
type TaskResponse struct {
	ID           uint      `json:"id"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Status       string    `json:"status"`
	DateCreated  time.Time `json:"date_created"`
	TotalTime    string    `json:"total_time"`
	TotalSeconds float64   `json:"total_seconds"`
	OwnerID      uint      `json:"owner_id"`
}

// toTaskResponse converts a domain Task to a TaskResponse.
func toTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		Description:  task.Description,
		Category:     task.Category,
		Status:       string(task.Status),
		DateCreated:  task.DateCreated,
		TotalTime:    task.TotalTime.String(),
		TotalSeconds: task.TotalTime.Seconds(),
		OwnerID:      task.OwnerID,
	}
}
