package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/task"
)

// Change is the outcome of an update.
type Change struct {
	Task     domain.Task
	Previous domain.Status
}

// StatusChanged reports whether the update moved the task to another status.
func (c *Change) StatusChanged() bool {
	return c.Previous != c.Task.Status
}

// TaskService runs the task workflow for an already authenticated owner.
type TaskService struct {
	repo    *TaskRepository
	timeout time.Duration
	now     func() time.Time
}

// NewTaskService creates a new TaskService. Every store call is bounded by
// timeout.
func NewTaskService(repo *TaskRepository, timeout time.Duration) *TaskService {
	return &TaskService{
		repo:    repo,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *TaskService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func requireFields(description, category string) (string, string, error) {
	description = strings.TrimSpace(description)
	category = strings.TrimSpace(category)
	if description == "" {
		return "", "", fmt.Errorf("%w: description is required", apperr.ErrValidation)
	}
	if category == "" {
		return "", "", fmt.Errorf("%w: category is required", apperr.ErrValidation)
	}
	return description, category, nil
}

func requireOwner(ownerID uint) error {
	if ownerID == 0 {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// Create adds a Todo task for the owner.
func (s *TaskService) Create(ctx context.Context, ownerID uint, description, category string) (*domain.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	description, category, err := requireFields(description, category)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Description: description,
		Category:    category,
		Status:      domain.StatusTodo,
		DateCreated: s.now(),
		OwnerID:     ownerID,
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the owner's tasks ordered by creation time.
func (s *TaskService) List(ctx context.Context, ownerID uint) ([]domain.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repo.ListByOwner(ctx, ownerID)
}

// Get returns one of the owner's tasks.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID uint) (*domain.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repo.FindForOwner(ctx, ownerID, taskID)
}

// Update replaces the description, category and status of one of the
// owner's tasks. Moving to Done, including Done to Done, recomputes the
// total time from the creation date; other moves keep it.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID uint, description, category, status string) (*Change, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	description, category, err := requireFields(description, category)
	if err != nil {
		return nil, err
	}
	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	var previous domain.Status
	task, err := s.repo.UpdateForOwner(ctx, ownerID, taskID, func(t *domain.Task) error {
		previous = t.Status
		t.Description = description
		t.Category = category
		if next == domain.StatusDone {
			t.Complete(s.now())
		} else {
			t.Status = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Change{Task: *task, Previous: previous}, nil
}

// Delete removes one of the owner's tasks.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID uint) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repo.DeleteForOwner(ctx, ownerID, taskID)
}
