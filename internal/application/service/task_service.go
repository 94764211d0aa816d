package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/event"
	"github.com/officesync/timeline/internal/domain/workflow"
)

// CreateTaskInput is a manually created task. StaffID 0 means the actor.
type CreateTaskInput struct {
	StaffID            int64    `json:"staff_id"`
	Title              string   `json:"title" validate:"required,max=200"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Date               string   `json:"task_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime          string   `json:"start_time" validate:"required,clock"`
	EndTime            string   `json:"end_time" validate:"required,clock"`
	Status             string   `json:"status" validate:"omitempty,oneof=todo in-progress done"`
	IsRoutine          bool     `json:"is_routine"`
	RoutineDays        []int    `json:"routine_days" validate:"omitempty,dive,min=0,max=6"`
	AttachmentRequired bool     `json:"attachment_required"`
	Checklist          []string `json:"checklist"`
	Mentions           []int64  `json:"mentions"`
}

// TaskService creates tasks and lists a staff member's day
type TaskService interface {
	CreateTask(ctx context.Context, actor *entity.Actor, input CreateTaskInput) (*entity.TaskDetail, error)
	GetTask(ctx context.Context, actor *entity.Actor, taskID int64) (*entity.TaskDetail, error)
	ListDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) ([]*entity.TaskDetail, error)
}

type taskServiceImpl struct {
	tasks       port.TaskRepository
	checklists  port.ChecklistRepository
	attachments port.AttachmentRepository
	mentions    port.MentionRepository
	templates   port.TemplateStore
	emitter     port.NotificationEmitter
	txManager   port.TransactionManager
	events      dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks port.TaskRepository,
	checklists port.ChecklistRepository,
	attachments port.AttachmentRepository,
	mentions port.MentionRepository,
	templates port.TemplateStore,
	emitter port.NotificationEmitter,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		tasks:       tasks,
		checklists:  checklists,
		attachments: attachments,
		mentions:    mentions,
		templates:   templates,
		emitter:     emitter,
		txManager:   txManager,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateTask stores a task with its checklist and mentions, notifies the
// people involved and, for routines, seeds a department template.
func (s *taskServiceImpl) CreateTask(ctx context.Context, actor *entity.Actor, input CreateTaskInput) (*entity.TaskDetail, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	task, err := s.buildTask(actor, input)
	if err != nil {
		return nil, err
	}

	// Requests may be dropped on anyone's timeline; everything else needs access.
	if task.Category != entity.CategoryRequest {
		if err := requireAccess(actor, task.StaffID); err != nil {
			return nil, err
		}
	}

	if task.Status == workflow.StateDone && task.AttachmentRequired {
		// a new task has no attachments yet
		return nil, apperr.Gate(apperr.ErrAttachmentRequired)
	}

	items := []*entity.ChecklistItem{}
	for i, text := range input.Checklist {
		if text = strings.TrimSpace(text); text != "" {
			items = append(items, &entity.ChecklistItem{Text: text, SortOrder: i})
		}
	}

	ctx, outbox := dispatcher.WithOutbox(ctx)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, task); err != nil {
			if errors.Is(err, port.ErrDuplicateTask) {
				return apperr.Validation("task %q already exists on %s", task.Title, task.Date())
			}
			return fmt.Errorf("create task: %w", err)
		}

		if len(items) > 0 {
			if err := s.checklists.CreateItems(txCtx, task.ID, items); err != nil {
				return fmt.Errorf("create checklist: %w", err)
			}
		}

		if err := s.notifyAssignee(txCtx, actor, task); err != nil {
			return err
		}
		if err := s.addMentions(txCtx, actor, task, input.Mentions); err != nil {
			return err
		}
		if task.IsRoutine {
			return s.saveAsTemplate(txCtx, actor, task, items)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create task", "error", err, "staff_id", task.StaffID, "title", task.Title)
		return nil, err
	}

	s.events.Notify(ctx, taskEvent(event.TypeTaskCreated, task, actor, map[string]interface{}{
		"title": task.Title,
	}))
	outbox.Flush(ctx, s.events)
	s.logger.Info("Task created", "task_id", task.ID, "staff_id", task.StaffID, "date", task.Date())

	return &entity.TaskDetail{
		Task:      task,
		Date:      task.Date(),
		Checklist: items,
		Progress:  entity.Progress(items),
	}, nil
}

func (s *taskServiceImpl) buildTask(actor *entity.Actor, input CreateTaskInput) (*entity.Task, error) {
	staffID := input.StaffID
	if staffID == 0 {
		if actor == nil {
			return nil, apperr.Validation("staff_id is required")
		}
		staffID = actor.UserID
	}

	category, err := entity.ParseCategory(input.Category)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	date := entity.DateOf(s.now())
	if input.Date != "" {
		if date, err = entity.ParseDate(input.Date); err != nil {
			return nil, apperr.Validation("%v", err)
		}
	}

	start, _ := entity.ParseClockTime(input.StartTime)
	end, _ := entity.ParseClockTime(input.EndTime)
	if end < start {
		return nil, apperr.Validation("end_time must not be before start_time")
	}

	status := workflow.StateTodo
	if input.Status != "" {
		if status, err = workflow.ParseState(input.Status); err != nil {
			return nil, apperr.Validation("invalid status %q", input.Status)
		}
	}

	task := &entity.Task{
		StaffID:            staffID,
		Title:              input.Title,
		Description:        strings.TrimSpace(input.Description),
		Category:           category,
		Status:             status,
		TaskDate:           date,
		StartTime:          start,
		EndTime:            end,
		IsRoutine:          input.IsRoutine,
		AttachmentRequired: input.AttachmentRequired,
		CreatedBy:          actor.CreatedBy(),
	}
	if len(input.RoutineDays) > 0 {
		mask, err := entity.NewWeekdayMask(input.RoutineDays...)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		task.RoutineDays = &mask
	}
	return task, nil
}

func (s *taskServiceImpl) notifyAssignee(ctx context.Context, actor *entity.Actor, task *entity.Task) error {
	if actor == nil || actor.UserID == task.StaffID {
		return nil
	}
	taskID := task.ID
	err := s.emitter.Emit(ctx, &entity.Notification{
		UserID:  task.StaffID,
		Title:   "📨 Tugas Baru Masuk",
		Message: fmt.Sprintf("%s memberikan tugas baru: \"%s\". Tolong cek Daftar Tugas!", actor.Name, task.Title),
		Type:    entity.NotificationInfo,
		TaskID:  &taskID,
	})
	if err != nil {
		return fmt.Errorf("notify assignee: %w", err)
	}
	return nil
}

// addMentions links users to be told on completion. The actor and repeated
// ids are skipped.
func (s *taskServiceImpl) addMentions(ctx context.Context, actor *entity.Actor, task *entity.Task, userIDs []int64) error {
	seen := make(map[int64]bool, len(userIDs))
	name := systemActorName
	if actor != nil {
		name = actor.Name
	}
	taskID := task.ID

	for _, id := range userIDs {
		if id <= 0 || seen[id] || (actor != nil && id == actor.UserID) {
			continue
		}
		seen[id] = true

		if err := s.mentions.Create(ctx, task.ID, id); err != nil {
			return fmt.Errorf("create mention: %w", err)
		}
		err := s.emitter.Emit(ctx, &entity.Notification{
			UserID:  id,
			Title:   "🔔 Anda di-tag di tugas baru",
			Message: fmt.Sprintf("%s menambahkan Anda untuk diberitahu ketika tugas \"%s\" selesai.", name, task.Title),
			Type:    entity.NotificationMention,
			TaskID:  &taskID,
		})
		if err != nil {
			return fmt.Errorf("notify mention: %w", err)
		}
	}
	return nil
}

// saveAsTemplate seeds a template for the actor's department the first time
// a routine with this title is created there.
func (s *taskServiceImpl) saveAsTemplate(ctx context.Context, actor *entity.Actor, task *entity.Task, items []*entity.ChecklistItem) error {
	if actor == nil || task.RoutineDays == nil {
		return nil
	}

	existing, err := s.templates.FindByDepartmentTitle(ctx, actor.Department, task.Title)
	if err != nil {
		return fmt.Errorf("find template: %w", err)
	}
	if existing != nil {
		return nil
	}

	duration := entity.DefaultTemplateDuration
	if task.EndTime > task.StartTime {
		duration = task.StartTime.HoursUntil(task.EndTime)
	}

	checklist := make([]string, 0, len(items))
	for _, it := range items {
		checklist = append(checklist, it.Text)
	}

	tpl := &entity.RoutineTemplate{
		Department:        actor.Department,
		Title:             task.Title,
		RoutineDays:       *task.RoutineDays,
		DefaultStartTime:  task.StartTime,
		DurationHours:     duration,
		ChecklistTemplate: checklist,
		IsActive:          true,
		CreatedBy:         actor.CreatedBy(),
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return fmt.Errorf("save routine template: %w", err)
	}
	s.logger.Info("Routine saved as template", "template_id", tpl.ID, "department", tpl.Department, "title", tpl.Title)
	return nil
}

// GetTask returns one task with its checklist
func (s *taskServiceImpl) GetTask(ctx context.Context, actor *entity.Actor, taskID int64) (*entity.TaskDetail, error) {
	task, err := loadTask(ctx, s.tasks, actor, taskID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, task)
}

// ListDay returns a staff member's tasks for one day with checklist progress
func (s *taskServiceImpl) ListDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) ([]*entity.TaskDetail, error) {
	if err := requireAccess(actor, staffID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByStaffDate(ctx, staffID, date)
	if err != nil {
		s.logger.Error("Failed to list tasks", "error", err, "staff_id", staffID, "date", entity.FormatDate(date))
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	details := make([]*entity.TaskDetail, 0, len(tasks))
	for _, task := range tasks {
		d, err := s.detail(ctx, task)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *taskServiceImpl) detail(ctx context.Context, task *entity.Task) (*entity.TaskDetail, error) {
	items, err := s.checklists.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("list checklist of task %d: %w", task.ID, err)
	}
	count, err := s.attachments.CountByTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("count attachments of task %d: %w", task.ID, err)
	}
	if items == nil {
		items = []*entity.ChecklistItem{}
	}
	return &entity.TaskDetail{
		Task:        task,
		Date:        task.Date(),
		Checklist:   items,
		Progress:    entity.Progress(items),
		Attachments: count,
	}, nil
}
