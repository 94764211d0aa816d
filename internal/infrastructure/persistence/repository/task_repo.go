package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/workflow"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const taskColumns = `
	id, staff_id, title, description, category, status, task_date,
	start_time, end_time, is_routine, routine_days, attachment_required,
	created_by, created_at, updated_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a task. A UNIQUE(staff_id, task_date, title) violation is
// reported as port.ErrDuplicateTask.
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			staff_id, title, description, category, status, task_date,
			start_time, end_time, is_routine, routine_days, attachment_required,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	routineDays, err := nullDays(task.RoutineDays)
	if err != nil {
		return fmt.Errorf("failed to encode routine days: %w", err)
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.StaffID,
		task.Title,
		nullString(task.Description),
		string(task.Category),
		string(task.Status),
		task.Date(),
		nullClock(task.StartTime),
		nullClock(task.EndTime),
		task.IsRoutine,
		routineDays,
		task.AttachmentRequired,
		nullInt64(task.CreatedBy),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("create task %q for staff %d on %s: %w", task.Title, task.StaffID, task.Date(), port.ErrDuplicateTask)
		}
		r.logger.Error("Failed to create task",
			zap.Int64("staff_id", task.StaffID),
			zap.String("task_date", task.Date()),
			zap.String("title", task.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := r.scanTask(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// FindByStaffDateTitle returns the task occupying a (staff, date, title) slot
func (r *TaskRepository) FindByStaffDateTitle(ctx context.Context, staffID int64, date time.Time, title string) (*entity.Task, error) {
	query := `SELECT` + taskColumns + ` FROM tasks WHERE staff_id = ? AND task_date = ? AND title = ?`

	task, err := r.scanTask(r.getExecutor(ctx).QueryRowContext(ctx, query, staffID, entity.FormatDate(date), title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// ListByStaffDate returns a staff member's tasks for one day ordered by start time
func (r *TaskRepository) ListByStaffDate(ctx context.Context, staffID int64, date time.Time) ([]*entity.Task, error) {
	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE staff_id = ? AND task_date = ?
		ORDER BY start_time, id`

	return r.queryTasks(ctx, query, staffID, entity.FormatDate(date))
}

// ListPersonalRoutines returns routine tasks newest first
func (r *TaskRepository) ListPersonalRoutines(ctx context.Context, staffID int64) ([]*entity.Task, error) {
	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE staff_id = ? AND is_routine = 1
		ORDER BY id DESC`

	return r.queryTasks(ctx, query, staffID)
}

// UpdateStatus sets the status column
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status workflow.State) error {
	query := `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, string(status), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update task status",
			zap.Int64("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %d", id)
	}
	return nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*entity.Task, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) scanTask(row rowScanner) (*entity.Task, error) {
	var (
		task                  entity.Task
		description           sql.NullString
		category, status, day string
		startTime, endTime    sql.NullString
		routineDays           sql.NullString
		createdBy             sql.NullInt64
	)

	err := row.Scan(
		&task.ID,
		&task.StaffID,
		&task.Title,
		&description,
		&category,
		&status,
		&day,
		&startTime,
		&endTime,
		&task.IsRoutine,
		&routineDays,
		&task.AttachmentRequired,
		&createdBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.Category = entity.Category(category)
	task.CreatedBy = int64Ptr(createdBy)
	task.StartTime = clockFrom(startTime)
	task.EndTime = clockFrom(endTime)

	if task.Status, err = workflow.ParseState(status); err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	if task.TaskDate, err = entity.ParseDate(day); err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	if task.RoutineDays, err = daysFrom(routineDays); err != nil {
		// A corrupt mask disables the routine rather than failing the whole day.
		r.logger.Error("Ignoring unreadable routine days",
			zap.Int64("task_id", task.ID),
			zap.String("routine_days", routineDays.String),
			zap.Error(err))
		task.RoutineDays = nil
	}

	return &task, nil
}

func (r *TaskRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.TaskRepository = (*TaskRepository)(nil)
