package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/account"
	"github.com/example/task-tracker/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// TaskModule provides the task workflow services.
type TaskModule struct {
	database     *store.PluginModule
	service      *TaskService
	accounts     account.AccountPort
	eventBus     mono.EventBus
	storeTimeout time.Duration
	logger       types.Logger
}

var (
	_ mono.Module                = (*TaskModule)(nil)
	_ mono.ServiceProviderModule = (*TaskModule)(nil)
	_ mono.DependentModule       = (*TaskModule)(nil)
	_ mono.UsePluginModule       = (*TaskModule)(nil)
	_ mono.EventBusAwareModule   = (*TaskModule)(nil)
	_ mono.EventEmitterModule    = (*TaskModule)(nil)
)

// NewModule creates a new TaskModule.
func NewModule(storeTimeout time.Duration, logger types.Logger) *TaskModule {
	return &TaskModule{
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) Dependencies() []string {
	return []string{"account"}
}

func (m *TaskModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "account" {
		m.accounts = account.NewAccountAdapter(container)
	}
}

// SetPlugin receives the database plugin from the framework.
func (m *TaskModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "database" {
		return
	}
	db, ok := plugin.(*store.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for database",
			"alias", alias,
			"expected", "*store.PluginModule")
		return
	}
	m.database = db
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskStatusChangedV1.ToBase(),
		events.TaskCompletedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-task", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-tasks", json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register list-tasks service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-task", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task", json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register update-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-task", json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register delete-task service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", []string{"create-task", "list-tasks", "get-task", "update-task", "delete-task"})
	return nil
}

func (m *TaskModule) Start(_ context.Context) error {
	if m.accounts == nil {
		return fmt.Errorf("account dependency not set")
	}
	if m.database == nil || m.database.Port() == nil {
		return fmt.Errorf("required plugin 'database' not registered")
	}
	if m.eventBus == nil {
		m.logger.Warn("Event bus not set, events will not be published")
	}

	m.service = NewTaskService(NewTaskRepository(m.database.Port()), m.storeTimeout)

	m.logger.Info("Task module started", "dependsOn", "account")
	return nil
}

func (m *TaskModule) Stop(_ context.Context) error {
	m.logger.Info("Task module stopped")
	return nil
}

// owner resolves the session token to the owning user's id. It is asked
// afresh on every request.
func (m *TaskModule) owner(ctx context.Context, token string) (uint, error) {
	state, err := m.accounts.Resolve(ctx, token)
	if err != nil {
		return 0, err
	}
	id, ok := state.UserID()
	if !ok {
		return 0, apperr.ErrUnauthenticated
	}
	return id, nil
}

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	ownerID, err := m.owner(ctx, req.Token)
	if err != nil {
		return TaskResponse{}, err
	}

	task, err := m.service.Create(ctx, ownerID, req.Description, req.Category)
	if err != nil {
		return TaskResponse{}, err
	}

	m.publish("TaskCreated", task.ID, func() error {
		return events.TaskCreatedV1.Publish(m.eventBus, events.TaskCreatedEvent{
			TaskID:      task.ID,
			OwnerID:     task.OwnerID,
			Description: task.Description,
			Category:    task.Category,
			CreatedAt:   task.DateCreated,
		}, nil)
	})

	return toTaskResponse(task), nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	ownerID, err := m.owner(ctx, req.Token)
	if err != nil {
		return ListTasksResponse{}, err
	}

	tasks, err := m.service.List(ctx, ownerID)
	if err != nil {
		return ListTasksResponse{}, err
	}

	response := ListTasksResponse{
		Tasks: make([]TaskResponse, 0, len(tasks)),
		Total: len(tasks),
	}
	for i := range tasks {
		response.Tasks = append(response.Tasks, toTaskResponse(&tasks[i]))
	}
	return response, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	ownerID, err := m.owner(ctx, req.Token)
	if err != nil {
		return TaskResponse{}, err
	}

	task, err := m.service.Get(ctx, ownerID, req.TaskID)
	if err != nil {
		return TaskResponse{}, err
	}
	return toTaskResponse(task), nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	ownerID, err := m.owner(ctx, req.Token)
	if err != nil {
		return TaskResponse{}, err
	}

	change, err := m.service.Update(ctx, ownerID, req.TaskID, req.Description, req.Category, req.Status)
	if err != nil {
		return TaskResponse{}, err
	}
	task := change.Task
	now := time.Now()

	if change.StatusChanged() {
		m.publish("TaskStatusChanged", task.ID, func() error {
			return events.TaskStatusChangedV1.Publish(m.eventBus, events.TaskStatusChangedEvent{
				TaskID:    task.ID,
				OwnerID:   task.OwnerID,
				From:      string(change.Previous),
				To:        string(task.Status),
				ChangedAt: now,
			}, nil)
		})
	}
	if task.Status == domain.StatusDone {
		m.publish("TaskCompleted", task.ID, func() error {
			return events.TaskCompletedV1.Publish(m.eventBus, events.TaskCompletedEvent{
				TaskID:      task.ID,
				OwnerID:     task.OwnerID,
				TotalTime:   task.TotalTime,
				CompletedAt: now,
			}, nil)
		})
	}

	return toTaskResponse(&task), nil
}

func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	ownerID, err := m.owner(ctx, req.Token)
	if err != nil {
		return DeleteTaskResponse{Deleted: false}, err
	}

	if err := m.service.Delete(ctx, ownerID, req.TaskID); err != nil {
		return DeleteTaskResponse{Deleted: false}, err
	}

	m.publish("TaskDeleted", req.TaskID, func() error {
		return events.TaskDeletedV1.Publish(m.eventBus, events.TaskDeletedEvent{
			TaskID:    req.TaskID,
			OwnerID:   ownerID,
			DeletedAt: time.Now(),
		}, nil)
	})

	return DeleteTaskResponse{Deleted: true}, nil
}

// publish is best effort: a failed publish is logged and never fails the
// operation that triggered it.
func (m *TaskModule) publish(event string, taskID uint, fn func() error) {
	if m.eventBus == nil {
		return
	}
	if err := fn(); err != nil {
		m.logger.Warn("Failed to publish event", "event", event, "taskID", taskID, "error", err)
	}
}
