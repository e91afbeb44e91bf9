package task

import (
	"fmt"
	"time"

	"github.com/example/task-tracker/domain/apperr"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo  Status = "Todo"
	StatusDoing Status = "Doing"
	StatusDone  Status = "Done"
)

// Statuses lists every allowed status in lifecycle order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusDone}

// ParseStatus returns the Status named by s. Names are matched exactly.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, s)
}

// Task is a to-do item owned by a single user.
type Task struct {
	ID          uint          `gorm:"primaryKey;autoIncrement"`
	Description string        `gorm:"not null;size:200"`
	Category    string        `gorm:"not null;size:200"`
	Status      Status        `gorm:"not null;size:16"`
	DateCreated time.Time     `gorm:"not null;index"`
	TotalTime   time.Duration `gorm:"not null;default:0"`
	OwnerID     uint          `gorm:"not null;index"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Complete records the time elapsed since creation. It is applied on every
// transition into Done, replacing any earlier value.
func (t *Task) Complete(now time.Time) {
	t.Status = StatusDone
	t.TotalTime = now.Sub(t.DateCreated)
}
