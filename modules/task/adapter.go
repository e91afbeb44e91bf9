package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort defines the task operations available to other modules. Every
// call carries the caller's session token.
type TaskPort interface {
	CreateTask(ctx context.Context, token, description, category string) (*TaskResponse, error)
	ListTasks(ctx context.Context, token string) (*ListTasksResponse, error)
	GetTask(ctx context.Context, token string, taskID uint) (*TaskResponse, error)
	UpdateTask(ctx context.Context, req *UpdateTaskRequest) (*TaskResponse, error)
	DeleteTask(ctx context.Context, token string, taskID uint) error
}

// taskAdapter implements TaskPort over the task module's service container.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new adapter for task services.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
}

// call invokes a request-reply service and maps a remote failure back onto
// its apperr sentinel.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s service call failed: %w", service, apperr.FromRemote(err))
	}
	return nil
}

// CreateTask creates a task via the create-task service.
func (a *taskAdapter) CreateTask(ctx context.Context, token, description, category string) (*TaskResponse, error) {
	req := CreateTaskRequest{Token: token, Description: description, Category: category}
	var resp TaskResponse
	if err := call(ctx, a.container, "create-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTasks lists the caller's tasks via the list-tasks service.
func (a *taskAdapter) ListTasks(ctx context.Context, token string) (*ListTasksResponse, error) {
	req := ListTasksRequest{Token: token}
	var resp ListTasksResponse
	if err := call(ctx, a.container, "list-tasks", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTask retrieves a task via the get-task service.
func (a *taskAdapter) GetTask(ctx context.Context, token string, taskID uint) (*TaskResponse, error) {
	req := GetTaskRequest{Token: token, TaskID: taskID}
	var resp TaskResponse
	if err := call(ctx, a.container, "get-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTask updates a task via the update-task service.
func (a *taskAdapter) UpdateTask(ctx context.Context, req *UpdateTaskRequest) (*TaskResponse, error) {
	var resp TaskResponse
	if err := call(ctx, a.container, "update-task", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTask deletes a task via the delete-task service.
func (a *taskAdapter) DeleteTask(ctx context.Context, token string, taskID uint) error {
	req := DeleteTaskRequest{Token: token, TaskID: taskID}
	var resp DeleteTaskResponse
	return call(ctx, a.container, "delete-task", &req, &resp)
}
