package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ChecklistRepository implements port.ChecklistRepository
type ChecklistRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(db *sql.DB, logger *zap.Logger) port.ChecklistRepository {
	return &ChecklistRepository{
		db:     db,
		logger: logger,
	}
}

// CreateItems inserts items for a task, assigning IDs and TaskID in place
func (r *ChecklistRepository) CreateItems(ctx context.Context, taskID int64, items []*entity.ChecklistItem) error {
	query := `
		INSERT INTO checklist_items (task_id, text, sort_order, is_done, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, item := range items {
		result, err := exec.ExecContext(ctx, query,
			taskID,
			item.Text,
			item.SortOrder,
			item.IsDone,
			nullTime(item.CompletedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create checklist item",
				zap.Int64("task_id", taskID),
				zap.Int("sort_order", item.SortOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create checklist item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.TaskID = taskID
	}
	return nil
}

// GetByID retrieves a checklist item by its ID
func (r *ChecklistRepository) GetByID(ctx context.Context, id int64) (*entity.ChecklistItem, error) {
	query := `
		SELECT id, task_id, text, sort_order, is_done, completed_at
		FROM checklist_items WHERE id = ?
	`

	item, err := scanChecklistItem(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get checklist item", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	return item, nil
}

// ListByTask returns a task's items in display order
func (r *ChecklistRepository) ListByTask(ctx context.Context, taskID int64) ([]*entity.ChecklistItem, error) {
	query := `
		SELECT id, task_id, text, sort_order, is_done, completed_at
		FROM checklist_items
		WHERE task_id = ?
		ORDER BY sort_order, id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to list checklist items", zap.Int64("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}
	defer rows.Close()

	var items []*entity.ChecklistItem
	for rows.Next() {
		item, err := scanChecklistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist items: %w", err)
	}
	return items, nil
}

// SetDone updates is_done and completed_at together
func (r *ChecklistRepository) SetDone(ctx context.Context, id int64, done bool, completedAt *time.Time) error {
	if done != (completedAt != nil) {
		return fmt.Errorf("checklist item %d: completed_at must be set exactly when done", id)
	}

	query := `UPDATE checklist_items SET is_done = ?, completed_at = ? WHERE id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, done, nullTime(completedAt), id)
	if err != nil {
		r.logger.Error("Failed to update checklist item",
			zap.Int64("id", id),
			zap.Bool("done", done),
			zap.Error(err))
		return fmt.Errorf("failed to update checklist item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checklist item not found: %d", id)
	}
	return nil
}

func scanChecklistItem(row rowScanner) (*entity.ChecklistItem, error) {
	var (
		item        entity.ChecklistItem
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&item.ID,
		&item.TaskID,
		&item.Text,
		&item.SortOrder,
		&item.IsDone,
		&completedAt,
	); err != nil {
		return nil, err
	}
	item.CompletedAt = timePtr(completedAt)
	return &item, nil
}

var _ port.ChecklistRepository = (*ChecklistRepository)(nil)
