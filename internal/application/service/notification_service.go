package service

import (
	"context"
	"fmt"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
)

const maxNotificationPage = 200

// NotificationService reads the actor's in-app notifications
type NotificationService interface {
	List(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error)
}

type notificationServiceImpl struct {
	notifications port.NotificationRepository
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{notifications: notifications, logger: logger}
}

// List returns the newest notifications first. A limit of 0 uses the store's default.
func (s *notificationServiceImpl) List(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error) {
	if actor == nil {
		return nil, apperr.Validation("notifications belong to a user")
	}
	if limit < 0 || limit > maxNotificationPage {
		return nil, apperr.Validation("limit must be between 0 and %d", maxNotificationPage)
	}

	notes, err := s.notifications.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		s.logger.Error("Failed to list notifications", "error", err, "user_id", actor.UserID)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if notes == nil {
		notes = []*entity.Notification{}
	}
	return notes, nil
}
