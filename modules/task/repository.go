package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/task"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned for tasks that are missing or owned by another
// user; callers cannot tell the two apart.
var ErrTaskNotFound = fmt.Errorf("task %w", apperr.ErrNotFound)

// TaskRepository is the task store. Every read and write is scoped to an
// owner.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task and assigns its ID.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("%w: create task: %v", apperr.ErrStorage, err)
	}
	return nil
}

// ListByOwner returns the owner's tasks, oldest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("date_created ASC").
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks: %v", apperr.ErrStorage, err)
	}
	return tasks, nil
}

// FindForOwner returns one of the owner's tasks.
func (r *TaskRepository) FindForOwner(ctx context.Context, ownerID, id uint) (*domain.Task, error) {
	return findForOwner(r.db.WithContext(ctx), ownerID, id)
}

func findForOwner(db *gorm.DB, ownerID, id uint) (*domain.Task, error) {
	var task domain.Task
	err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("%w: find task: %v", apperr.ErrStorage, err)
	}
	return &task, nil
}

// UpdateForOwner reads the owner's task, applies fn and writes the result,
// all in one transaction. Nothing is written when fn fails.
func (r *TaskRepository) UpdateForOwner(ctx context.Context, ownerID, id uint, fn func(*domain.Task) error) (*domain.Task, error) {
	var updated *domain.Task

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findForOwner(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}

		result := tx.Model(&domain.Task{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(map[string]any{
				"description": task.Description,
				"category":    task.Category,
				"status":      task.Status,
				"total_time":  task.TotalTime,
			})
		if result.Error != nil {
			return fmt.Errorf("%w: update task: %v", apperr.ErrStorage, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteForOwner removes the owner's task in a single statement.
func (r *TaskRepository) DeleteForOwner(ctx context.Context, ownerID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.Task{})
	if result.Error != nil {
		return fmt.Errorf("%w: delete task: %v", apperr.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
