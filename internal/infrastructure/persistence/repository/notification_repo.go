package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message, type, task_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Type == "" {
		n.Type = entity.NotificationInfo
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		n.UserID,
		n.Title,
		n.Message,
		string(n.Type),
		nullInt64(n.TaskID),
		n.IsRead,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// ListByUser returns a user's latest notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, title, message, type, task_id, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []*entity.Notification
	for rows.Next() {
		var (
			n      entity.Notification
			typ    string
			taskID sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &taskID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = entity.NotificationType(typ)
		n.TaskID = int64Ptr(taskID)
		list = append(list, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return list, nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
