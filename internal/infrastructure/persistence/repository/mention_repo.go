package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// MentionRepository implements port.MentionRepository
type MentionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMentionRepository creates a new mention repository
func NewMentionRepository(db *sql.DB, logger *zap.Logger) port.MentionRepository {
	return &MentionRepository{
		db:     db,
		logger: logger,
	}
}

// Create links a user to a task; an existing link is left alone
func (r *MentionRepository) Create(ctx context.Context, taskID, userID int64) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT OR IGNORE INTO task_mentions (task_id, user_id) VALUES (?, ?)`,
		taskID, userID)
	if err != nil {
		r.logger.Error("Failed to create mention",
			zap.Int64("task_id", taskID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to create mention: %w", err)
	}
	return nil
}

// ListByTask returns every mention of a task
func (r *MentionRepository) ListByTask(ctx context.Context, taskID int64) ([]*entity.Mention, error) {
	return r.query(ctx, `
		SELECT id, task_id, user_id, notified_on_complete
		FROM task_mentions WHERE task_id = ? ORDER BY id`, taskID)
}

// ListUnnotified returns mentions not yet told about completion
func (r *MentionRepository) ListUnnotified(ctx context.Context, taskID int64) ([]*entity.Mention, error) {
	return r.query(ctx, `
		SELECT id, task_id, user_id, notified_on_complete
		FROM task_mentions WHERE task_id = ? AND notified_on_complete = 0 ORDER BY id`, taskID)
}

// MarkNotified sets the notified flag
func (r *MentionRepository) MarkNotified(ctx context.Context, id int64) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE task_mentions SET notified_on_complete = 1 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to mark mention notified", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark mention notified: %w", err)
	}
	return nil
}

func (r *MentionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Mention, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query mentions", zap.Error(err))
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []*entity.Mention
	for rows.Next() {
		var m entity.Mention
		if err := rows.Scan(&m.ID, &m.TaskID, &m.UserID, &m.NotifiedOnComplete); err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mentions: %w", err)
	}
	return mentions, nil
}

var _ port.MentionRepository = (*MentionRepository)(nil)
