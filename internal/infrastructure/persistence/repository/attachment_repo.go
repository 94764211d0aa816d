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

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an attachment
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	query := `
		INSERT INTO attachments (task_id, name, url, type, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		att.TaskID,
		att.Name,
		att.URL,
		att.Type,
		nullInt64(att.UploadedBy),
		att.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.Int64("task_id", att.TaskID),
			zap.String("name", att.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	att.ID = id
	return nil
}

// GetByID retrieves an attachment by its ID
func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*entity.Attachment, error) {
	query := `
		SELECT id, task_id, name, url, type, uploaded_by, created_at
		FROM attachments WHERE id = ?
	`

	att, err := scanAttachment(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get attachment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return att, nil
}

// ListByTask returns a task's attachments oldest first
func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID int64) ([]*entity.Attachment, error) {
	query := `
		SELECT id, task_id, name, url, type, uploaded_by, created_at
		FROM attachments
		WHERE task_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to list attachments", zap.Int64("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*entity.Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return attachments, nil
}

// CountByTask returns how many attachments a task has
func (r *AttachmentRepository) CountByTask(ctx context.Context, taskID int64) (int, error) {
	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE task_id = ?`, taskID).
		Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count attachments", zap.Int64("task_id", taskID), zap.Error(err))
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	return count, nil
}

// Delete removes an attachment
func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete attachment", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("attachment not found: %d", id)
	}
	return nil
}

func scanAttachment(row rowScanner) (*entity.Attachment, error) {
	var (
		att        entity.Attachment
		uploadedBy sql.NullInt64
	)
	if err := row.Scan(
		&att.ID,
		&att.TaskID,
		&att.Name,
		&att.URL,
		&att.Type,
		&uploadedBy,
		&att.CreatedAt,
	); err != nil {
		return nil, err
	}
	att.UploadedBy = int64Ptr(uploadedBy)
	return &att, nil
}

var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
