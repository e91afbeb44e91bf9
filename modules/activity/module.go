// Package activity keeps an audit trail of task lifecycle events.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// maxEntries bounds the in-memory trail; older entries are dropped first.
const maxEntries = 1000

// Entry is one recorded task event.
type Entry struct {
	Event      string    `json:"event"`
	TaskID     uint      `json:"task_id"`
	OwnerID    uint      `json:"owner_id"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ActivityModule consumes task events, writes them to the log and serves the
// per-owner trail through the list-activity service.
type ActivityModule struct {
	logger  types.Logger
	mu      sync.RWMutex
	entries []Entry
}

var (
	_ mono.Module                = (*ActivityModule)(nil)
	_ mono.EventConsumerModule   = (*ActivityModule)(nil)
	_ mono.ServiceProviderModule = (*ActivityModule)(nil)
)

// NewModule creates a new ActivityModule.
func NewModule(logger types.Logger) *ActivityModule {
	return &ActivityModule{
		logger:  logger,
		entries: make([]Entry, 0),
	}
}

func (m *ActivityModule) Name() string {
	return "activity"
}

func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskStatusChangedV1, m.handleTaskStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register TaskStatusChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCompletedV1, m.handleTaskCompleted, m); err != nil {
		return fmt.Errorf("failed to register TaskCompleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"TaskCreated.v1", "TaskStatusChanged.v1", "TaskCompleted.v1", "TaskDeleted.v1"})
	return nil
}

func (m *ActivityModule) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.logger.Info("Task created",
		"taskID", event.TaskID,
		"ownerID", event.OwnerID,
		"category", event.Category)
	m.record("TaskCreated", event.TaskID, event.OwnerID, event.Description)
	return nil
}

func (m *ActivityModule) handleTaskStatusChanged(_ context.Context, event events.TaskStatusChangedEvent, _ *mono.Msg) error {
	m.logger.Info("Task status changed",
		"taskID", event.TaskID,
		"ownerID", event.OwnerID,
		"from", event.From,
		"to", event.To)
	m.record("TaskStatusChanged", event.TaskID, event.OwnerID, event.From+" -> "+event.To)
	return nil
}

func (m *ActivityModule) handleTaskCompleted(_ context.Context, event events.TaskCompletedEvent, _ *mono.Msg) error {
	m.logger.Info("Task completed",
		"taskID", event.TaskID,
		"ownerID", event.OwnerID,
		"totalTime", event.TotalTime.String())
	m.record("TaskCompleted", event.TaskID, event.OwnerID, event.TotalTime.String())
	return nil
}

func (m *ActivityModule) handleTaskDeleted(_ context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.logger.Info("Task deleted",
		"taskID", event.TaskID,
		"ownerID", event.OwnerID)
	m.record("TaskDeleted", event.TaskID, event.OwnerID, "")
	return nil
}

func (m *ActivityModule) record(event string, taskID, ownerID uint, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, Entry{
		Event:      event,
		TaskID:     taskID,
		OwnerID:    ownerID,
		Detail:     detail,
		RecordedAt: time.Now(),
	})
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}

// Entries returns the recorded events for ownerID, oldest first.
func (m *ActivityModule) Entries(ownerID uint) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, 0)
	for _, e := range m.entries {
		if e.OwnerID == ownerID {
			result = append(result, e)
		}
	}
	return result
}

// RegisterServices registers request-reply services in the service container.
func (m *ActivityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "list-activity", json.Unmarshal, json.Marshal, m.handleListActivity,
	); err != nil {
		return fmt.Errorf("failed to register list-activity service: %w", err)
	}

	m.logger.Info("Registered activity services", "services", []string{"list-activity"})
	return nil
}

func (m *ActivityModule) handleListActivity(_ context.Context, req ListActivityRequest, _ *mono.Msg) (ListActivityResponse, error) {
	if req.OwnerID == 0 {
		return ListActivityResponse{}, fmt.Errorf("%w: owner is required", apperr.ErrValidation)
	}
	entries := m.Entries(req.OwnerID)
	return ListActivityResponse{Entries: entries, Total: len(entries)}, nil
}

func (m *ActivityModule) Start(_ context.Context) error {
	m.logger.Info("Activity module started, listening for task events")
	return nil
}

func (m *ActivityModule) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}
