package port

import (
	"context"
	"errors"
	"time"

	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/workflow"
)

// ErrDuplicateTask is returned by TaskRepository.Create when a task with the
// same staff, date and title already exists.
var ErrDuplicateTask = errors.New("task already exists for staff, date and title")

// Lookups return (nil, nil) when the row does not exist.

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	FindByStaffDateTitle(ctx context.Context, staffID int64, date time.Time, title string) (*entity.Task, error)
	ListByStaffDate(ctx context.Context, staffID int64, date time.Time) ([]*entity.Task, error)

	// ListPersonalRoutines returns the staff member's routine tasks, newest first.
	ListPersonalRoutines(ctx context.Context, staffID int64) ([]*entity.Task, error)

	UpdateStatus(ctx context.Context, id int64, status workflow.State) error
}

// ChecklistRepository defines persistence operations for ChecklistItem
type ChecklistRepository interface {
	CreateItems(ctx context.Context, taskID int64, items []*entity.ChecklistItem) error
	GetByID(ctx context.Context, id int64) (*entity.ChecklistItem, error)

	// ListByTask returns items ordered by sort_order, then id.
	ListByTask(ctx context.Context, taskID int64) ([]*entity.ChecklistItem, error)

	SetDone(ctx context.Context, id int64, done bool, completedAt *time.Time) error
}

// TemplateStore defines persistence operations for RoutineTemplate
type TemplateStore interface {
	// ListActiveTemplates returns the active templates of one department.
	ListActiveTemplates(ctx context.Context, department string) ([]*entity.RoutineTemplate, error)

	// List returns every template, optionally filtered by department.
	List(ctx context.Context, department string) ([]*entity.RoutineTemplate, error)

	GetByID(ctx context.Context, id int64) (*entity.RoutineTemplate, error)
	FindByDepartmentTitle(ctx context.Context, department, title string) (*entity.RoutineTemplate, error)
	Create(ctx context.Context, tpl *entity.RoutineTemplate) error
	Update(ctx context.Context, tpl *entity.RoutineTemplate) error
	Delete(ctx context.Context, id int64) error
}

// AttachmentRepository defines persistence operations for Attachment
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.Attachment) error
	GetByID(ctx context.Context, id int64) (*entity.Attachment, error)
	ListByTask(ctx context.Context, taskID int64) ([]*entity.Attachment, error)
	CountByTask(ctx context.Context, taskID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// MentionRepository defines persistence operations for Mention
type MentionRepository interface {
	// Create ignores a mention that already exists.
	Create(ctx context.Context, taskID, userID int64) error
	ListByTask(ctx context.Context, taskID int64) ([]*entity.Mention, error)
	ListUnnotified(ctx context.Context, taskID int64) ([]*entity.Mention, error)
	MarkNotified(ctx context.Context, id int64) error
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error)
}

// StaffDirectory reads users. Account management lives elsewhere.
type StaffDirectory interface {
	GetByID(ctx context.Context, id int64) (*entity.Staff, error)

	// ListActiveStaff returns active users that are not administrators.
	ListActiveStaff(ctx context.Context) ([]*entity.Staff, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
