package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/event"
	"github.com/officesync/timeline/internal/domain/workflow"
)

// ToggleResult is the task state after a checklist toggle
type ToggleResult struct {
	ItemID     int64          `json:"item_id"`
	IsDone     bool           `json:"is_done"`
	NewStatus  workflow.State `json:"new_status"`
	DoneCount  int            `json:"done_count"`
	TotalCount int            `json:"total_count"`
}

// AttachmentInput describes evidence to link to a task
type AttachmentInput struct {
	TaskID int64
	Name   string
	URL    string
	Type   string
}

// CompletionService drives task status from checklist progress, manual
// overrides and attachment changes
type CompletionService interface {
	ToggleChecklistItem(ctx context.Context, actor *entity.Actor, itemID int64) (*ToggleResult, error)
	SetTaskStatus(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error)
	AddAttachment(ctx context.Context, actor *entity.Actor, input AttachmentInput) (*entity.Attachment, error)
	DeleteAttachment(ctx context.Context, actor *entity.Actor, attachmentID int64) (workflow.State, error)
}

type completionServiceImpl struct {
	tasks       port.TaskRepository
	checklists  port.ChecklistRepository
	attachments port.AttachmentRepository
	txManager   port.TransactionManager
	events      dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewCompletionService creates a new CompletionService
func NewCompletionService(
	tasks port.TaskRepository,
	checklists port.ChecklistRepository,
	attachments port.AttachmentRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) CompletionService {
	return &completionServiceImpl{
		tasks:       tasks,
		checklists:  checklists,
		attachments: attachments,
		txManager:   txManager,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// ToggleChecklistItem flips one item and recomputes the task status from the
// whole checklist, all in one transaction.
func (s *completionServiceImpl) ToggleChecklistItem(ctx context.Context, actor *entity.Actor, itemID int64) (*ToggleResult, error) {
	var (
		result *ToggleResult
		after  []*event.Event
	)

	ctx, outbox := dispatcher.WithOutbox(ctx)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		item, err := s.checklists.GetByID(txCtx, itemID)
		if err != nil {
			return fmt.Errorf("get checklist item: %w", err)
		}
		if item == nil {
			return apperr.NotFound("checklist item", itemID)
		}

		task, err := loadTask(txCtx, s.tasks, actor, item.TaskID)
		if err != nil {
			return err
		}

		item.SetDone(!item.IsDone, s.now())
		if err := s.checklists.SetDone(txCtx, item.ID, item.IsDone, item.CompletedAt); err != nil {
			return fmt.Errorf("update checklist item: %w", err)
		}

		items, err := s.checklists.ListByTask(txCtx, task.ID)
		if err != nil {
			return fmt.Errorf("list checklist: %w", err)
		}
		progress := entity.Progress(items)

		gate, err := s.gate(txCtx, task)
		if err != nil {
			return err
		}

		next := workflow.Derive(task.Status, progress.Done, progress.Total, gate)
		changed, err := s.applyStatus(txCtx, actor, task, next)
		if err != nil {
			return err
		}

		result = &ToggleResult{
			ItemID:     item.ID,
			IsDone:     item.IsDone,
			NewStatus:  next,
			DoneCount:  progress.Done,
			TotalCount: progress.Total,
		}

		after = append(after, taskEvent(event.TypeChecklistToggled, task, actor, map[string]interface{}{
			"item_id": item.ID,
			"is_done": item.IsDone,
		}))
		after = append(after, changed...)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to toggle checklist item", "error", err, "item_id", itemID)
		return nil, err
	}

	s.events.Notify(ctx, after...)
	outbox.Flush(ctx, s.events)
	s.logger.Info("Checklist item toggled",
		"item_id", itemID,
		"is_done", result.IsDone,
		"status", result.NewStatus,
		"progress", fmt.Sprintf("%d/%d", result.DoneCount, result.TotalCount),
	)
	return result, nil
}

// SetTaskStatus applies a manual status change.
//
// Only the attachment gate is enforced here. A task may be marked done with
// open checklist items, while the checklist path needs every item ticked.
func (s *completionServiceImpl) SetTaskStatus(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error) {
	target, err := workflow.ParseState(requested)
	if err != nil {
		return nil, apperr.Validation("invalid status %q", requested)
	}

	var (
		task  *entity.Task
		after []*event.Event
	)

	ctx, outbox := dispatcher.WithOutbox(ctx)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err = loadTask(txCtx, s.tasks, actor, taskID)
		if err != nil {
			return err
		}

		gate, err := s.gate(txCtx, task)
		if err != nil {
			return err
		}

		next, err := workflow.Transition(txCtx, task.Status, target, gate)
		if err != nil {
			if errors.Is(err, workflow.ErrGuardFailed) {
				return apperr.Gate(apperr.ErrAttachmentRequired)
			}
			return fmt.Errorf("transition task %d: %w", task.ID, err)
		}

		after, err = s.applyStatus(txCtx, actor, task, next)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to set task status", "error", err, "task_id", taskID, "requested", requested)
		return nil, err
	}

	s.events.Notify(ctx, after...)
	outbox.Flush(ctx, s.events)
	s.logger.Info("Task status set", "task_id", taskID, "status", task.Status)
	return task, nil
}

// AddAttachment links evidence to a task. It does not recompute the status;
// the next toggle or manual change sees the new count.
func (s *completionServiceImpl) AddAttachment(ctx context.Context, actor *entity.Actor, input AttachmentInput) (*entity.Attachment, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("attachment name is required")
	}
	if err := validateAttachmentURL(input.URL); err != nil {
		return nil, err
	}

	att := &entity.Attachment{
		TaskID:     input.TaskID,
		Name:       name,
		URL:        strings.TrimSpace(input.URL),
		Type:       input.Type,
		UploadedBy: actor.CreatedBy(),
	}
	if att.Type == "" {
		att.Type = "link"
	}

	var task *entity.Task
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		task, err = loadTask(txCtx, s.tasks, actor, input.TaskID)
		if err != nil {
			return err
		}
		if err := s.attachments.Create(txCtx, att); err != nil {
			return fmt.Errorf("create attachment: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add attachment", "error", err, "task_id", input.TaskID)
		return nil, err
	}

	s.events.Notify(ctx, taskEvent(event.TypeAttachmentAdded, task, actor, map[string]interface{}{
		"attachment_id": att.ID,
	}))
	s.logger.Info("Attachment added", "task_id", task.ID, "attachment_id", att.ID)
	return att, nil
}

// DeleteAttachment removes evidence. Removing the last attachment of a done
// task that requires one reopens it as in-progress, whatever its checklist says.
func (s *completionServiceImpl) DeleteAttachment(ctx context.Context, actor *entity.Actor, attachmentID int64) (workflow.State, error) {
	var (
		task  *entity.Task
		after []*event.Event
	)

	ctx, outbox := dispatcher.WithOutbox(ctx)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		att, err := s.attachments.GetByID(txCtx, attachmentID)
		if err != nil {
			return fmt.Errorf("get attachment: %w", err)
		}
		if att == nil {
			return apperr.NotFound("attachment", attachmentID)
		}

		task, err = loadTask(txCtx, s.tasks, actor, att.TaskID)
		if err != nil {
			return err
		}

		if err := s.attachments.Delete(txCtx, att.ID); err != nil {
			return fmt.Errorf("delete attachment: %w", err)
		}
		after = append(after, taskEvent(event.TypeAttachmentDeleted, task, actor, map[string]interface{}{
			"attachment_id": att.ID,
		}))

		gate, err := s.gate(txCtx, task)
		if err != nil {
			return err
		}

		m := workflow.NewTaskMachine(task.Status, gate)
		if !m.CanFire(txCtx, workflow.TriggerAttachmentRemoved) {
			return nil
		}
		if err := m.Fire(txCtx, workflow.TriggerAttachmentRemoved); err != nil {
			return fmt.Errorf("reopen task %d: %w", task.ID, err)
		}

		changed, err := s.applyStatus(txCtx, actor, task, m.State())
		after = append(after, changed...)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to delete attachment", "error", err, "attachment_id", attachmentID)
		return "", err
	}

	s.events.Notify(ctx, after...)
	outbox.Flush(ctx, s.events)
	s.logger.Info("Attachment deleted", "attachment_id", attachmentID, "task_id", task.ID, "status", task.Status)
	return task.Status, nil
}

// gate reads the attachment requirement of task. The count is only queried
// when the task requires attachments.
func (s *completionServiceImpl) gate(ctx context.Context, task *entity.Task) (workflow.Gate, error) {
	gate := workflow.Gate{Required: task.AttachmentRequired}
	if !gate.Required {
		return gate, nil
	}
	n, err := s.attachments.CountByTask(ctx, task.ID)
	if err != nil {
		return gate, fmt.Errorf("count attachments: %w", err)
	}
	gate.Attachments = n
	return gate, nil
}

// applyStatus persists next when it differs from the task's status. A move
// into done dispatches task.completed inside the transaction so mention
// notifications commit with it. It returns the events to publish after commit.
func (s *completionServiceImpl) applyStatus(ctx context.Context, actor *entity.Actor, task *entity.Task, next workflow.State) ([]*event.Event, error) {
	prev := task.Status
	if next == prev {
		return nil, nil
	}

	if err := s.tasks.UpdateStatus(ctx, task.ID, next); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	task.Status = next

	changed := taskEvent(event.TypeStatusChanged, task, actor, map[string]interface{}{
		"from": prev.String(),
		"to":   next.String(),
	})

	if next == workflow.StateDone {
		payload := map[string]interface{}{"title": task.Title}
		if actor != nil {
			payload["actor_name"] = actor.Name
		}
		if err := s.events.Dispatch(ctx, changed.Caused(event.TypeTaskCompleted, payload)); err != nil {
			return nil, fmt.Errorf("publish completion: %w", err)
		}
	}
	return []*event.Event{changed}, nil
}

func validateAttachmentURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return apperr.Validation("attachment url %q is not a valid URL", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range entity.AllowedAttachmentSchemes {
		if scheme == allowed {
			return nil
		}
	}
	return apperr.Validation("attachment url scheme %q is not allowed", u.Scheme)
}

func taskEvent(t event.Type, task *entity.Task, actor *entity.Actor, payload map[string]interface{}) *event.Event {
	return event.NewEvent(t, task.ID, task.StaffID, task.Date(), payload).By(actor.CreatedBy())
}
