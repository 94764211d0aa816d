package service

import (
	"context"
	"fmt"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
)

// canAccessStaff reports whether actor may act on staffID's timeline.
// The system (nil actor) and administrators may act on anyone.
func canAccessStaff(actor *entity.Actor, staffID int64) bool {
	if actor == nil || actor.IsAdmin() {
		return true
	}
	return actor.UserID == staffID
}

func requireAccess(actor *entity.Actor, staffID int64) error {
	if !canAccessStaff(actor, staffID) {
		return apperr.Forbidden("user %d may not act on staff %d", actor.UserID, staffID)
	}
	return nil
}

// loadTask fetches a task and checks the actor may touch it
func loadTask(ctx context.Context, tasks port.TaskRepository, actor *entity.Actor, taskID int64) (*entity.Task, error) {
	task, err := tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, apperr.NotFound("task", taskID)
	}
	if err := requireAccess(actor, task.StaffID); err != nil {
		return nil, err
	}
	return task, nil
}
