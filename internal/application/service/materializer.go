package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/event"
	"github.com/officesync/timeline/internal/domain/workflow"
)

// BatchWindowDays is the horizon of the periodic sweep
const BatchWindowDays = 30

// StaffSelector picks whose timelines a materialization run touches
type StaffSelector struct {
	All     bool
	StaffID int64
}

// AllStaff selects every active non-admin staff member
func AllStaff() StaffSelector { return StaffSelector{All: true} }

// SingleStaff selects one staff member
func SingleStaff(id int64) StaffSelector { return StaffSelector{StaffID: id} }

// UnitError is the failure of one (staff, date) unit of a run
type UnitError struct {
	StaffID int64
	Date    string
	Err     error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("staff %d on %s: %v", e.StaffID, e.Date, e.Err)
}

func (e UnitError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StaffID int64  `json:"staff_id"`
		Date    string `json:"date"`
		Error   string `json:"error"`
	}{e.StaffID, e.Date, e.Err.Error()})
}

// MaterializeResult summarizes a run. A run never aborts on a failed unit.
type MaterializeResult struct {
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Errors  []UnitError `json:"errors"`
}

// RoutineMaterializer creates dated tasks from templates and personal routines
type RoutineMaterializer interface {
	// MaterializeRoutines is idempotent: rerunning over the same window
	// creates nothing new.
	MaterializeRoutines(ctx context.Context, actor *entity.Actor, selector StaffSelector, window entity.DateWindow) (*MaterializeResult, error)
}

type materializerImpl struct {
	staff      port.StaffDirectory
	templates  port.TemplateStore
	tasks      port.TaskRepository
	checklists port.ChecklistRepository
	txManager  port.TransactionManager
	events     dispatcher.Dispatcher
	logger     Logger
}

// NewRoutineMaterializer creates a new RoutineMaterializer
func NewRoutineMaterializer(
	staff port.StaffDirectory,
	templates port.TemplateStore,
	tasks port.TaskRepository,
	checklists port.ChecklistRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) RoutineMaterializer {
	return &materializerImpl{
		staff:      staff,
		templates:  templates,
		tasks:      tasks,
		checklists: checklists,
		txManager:  txManager,
		events:     events,
		logger:     logger,
	}
}

// routineSource is one personal routine: the newest task carrying its title,
// with that task's checklist as the skeleton for new days.
type routineSource struct {
	task      *entity.Task
	checklist []entity.ChecklistItem
}

// staffPlan is read once per staff member before the window is walked, so
// tasks created during the run never feed back into it.
type staffPlan struct {
	staff     *entity.Staff
	templates []*entity.RoutineTemplate
	personal  []routineSource
}

// MaterializeRoutines generates routine tasks for the selected staff over window
func (s *materializerImpl) MaterializeRoutines(ctx context.Context, actor *entity.Actor, selector StaffSelector, window entity.DateWindow) (*MaterializeResult, error) {
	if window.Days < 1 {
		return nil, apperr.Validation("window must cover at least one day")
	}

	targets, err := s.resolveTargets(ctx, actor, selector)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Materializing routines",
		"staff_count", len(targets),
		"start", entity.FormatDate(window.Start),
		"days", window.Days,
	)

	result := &MaterializeResult{Errors: []UnitError{}}
	dates := window.Dates()

	for _, staff := range targets {
		plan, err := s.buildPlan(ctx, staff)
		if err != nil {
			s.logger.Error("Failed to read routines", "error", err, "staff_id", staff.ID)
			result.Errors = append(result.Errors, UnitError{StaffID: staff.ID, Date: entity.FormatDate(window.Start), Err: err})
			continue
		}

		for _, date := range dates {
			if err := ctx.Err(); err != nil {
				result.Errors = append(result.Errors, UnitError{StaffID: staff.ID, Date: entity.FormatDate(date), Err: err})
				s.logger.Error("Materialization interrupted", "error", err, "created", result.Created)
				return result, nil
			}

			created, skipped, err := s.materializeUnit(ctx, actor, plan, date)
			if err != nil {
				s.logger.Error("Failed to materialize routines",
					"error", err,
					"staff_id", staff.ID,
					"date", entity.FormatDate(date),
				)
				result.Errors = append(result.Errors, UnitError{StaffID: staff.ID, Date: entity.FormatDate(date), Err: err})
				continue
			}

			result.Created += len(created)
			result.Skipped += skipped
			s.events.Notify(ctx, created...)
		}
	}

	s.logger.Info("Routines materialized",
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

// resolveTargets applies the selector. Non-admin actors only ever reach
// their own timeline, whatever they asked for.
func (s *materializerImpl) resolveTargets(ctx context.Context, actor *entity.Actor, selector StaffSelector) ([]*entity.Staff, error) {
	if actor != nil && !actor.IsAdmin() {
		selector = SingleStaff(actor.UserID)
	}

	if selector.All {
		staff, err := s.staff.ListActiveStaff(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active staff: %w", err)
		}
		return staff, nil
	}

	staff, err := s.staff.GetByID(ctx, selector.StaffID)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	if staff == nil || !staff.IsActive {
		return nil, apperr.NotFound("staff", selector.StaffID)
	}
	return []*entity.Staff{staff}, nil
}

func (s *materializerImpl) buildPlan(ctx context.Context, staff *entity.Staff) (*staffPlan, error) {
	templates, err := s.templates.ListActiveTemplates(ctx, staff.Department)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	routines, err := s.tasks.ListPersonalRoutines(ctx, staff.ID)
	if err != nil {
		return nil, fmt.Errorf("list personal routines: %w", err)
	}

	plan := &staffPlan{staff: staff, templates: templates}
	seen := make(map[string]bool, len(routines))
	for _, task := range routines {
		// newest first, so the first task of a title defines the routine
		if seen[task.Title] {
			continue
		}
		seen[task.Title] = true

		items, err := s.checklists.ListByTask(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("list checklist of routine %d: %w", task.ID, err)
		}
		src := routineSource{task: task}
		for _, it := range items {
			src.checklist = append(src.checklist, entity.ChecklistItem{Text: it.Text, SortOrder: it.SortOrder})
		}
		plan.personal = append(plan.personal, src)
	}
	return plan, nil
}

// materializeUnit fills one staff member's day in a single transaction and
// returns the events of the tasks it created.
func (s *materializerImpl) materializeUnit(ctx context.Context, actor *entity.Actor, plan *staffPlan, date time.Time) ([]*event.Event, int, error) {
	var (
		created []*event.Event
		skipped int
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		created, skipped = nil, 0

		for _, tpl := range plan.templates {
			if !tpl.AppliesOn(date) {
				continue
			}
			days := tpl.RoutineDays
			task := &entity.Task{
				StaffID:     plan.staff.ID,
				Title:       tpl.Title,
				Description: tpl.Description,
				Category:    entity.CategoryJobdesk,
				Status:      workflow.StateTodo,
				TaskDate:    date,
				StartTime:   tpl.DefaultStartTime,
				EndTime:     tpl.EndTime(),
				IsRoutine:   true,
				RoutineDays: &days,
				CreatedBy:   actor.CreatedBy(),
			}
			ok, err := s.createIfAbsent(txCtx, task, skeleton(tpl.ChecklistTemplate))
			if err != nil {
				return fmt.Errorf("template %d: %w", tpl.ID, err)
			}
			if !ok {
				skipped++
				continue
			}
			created = append(created, materializedEvent(task, actor, "template"))
		}

		for _, src := range plan.personal {
			if !src.task.RepeatsOn(date.Weekday()) {
				continue
			}
			days := *src.task.RoutineDays
			task := &entity.Task{
				StaffID:     plan.staff.ID,
				Title:       src.task.Title,
				Category:    entity.CategoryJobdesk,
				Status:      workflow.StateTodo,
				TaskDate:    date,
				StartTime:   src.task.StartTime,
				EndTime:     src.task.EndTime,
				IsRoutine:   true,
				RoutineDays: &days,
				CreatedBy:   actor.CreatedBy(),
			}
			ok, err := s.createIfAbsent(txCtx, task, src.checklist)
			if err != nil {
				return fmt.Errorf("personal routine %q: %w", src.task.Title, err)
			}
			if !ok {
				skipped++
				continue
			}
			created = append(created, materializedEvent(task, actor, "personal"))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, skipped, nil
}

// createIfAbsent inserts task with its checklist unless the (staff, date,
// title) slot is taken. The lookup only saves a failed insert; the unique
// constraint decides.
func (s *materializerImpl) createIfAbsent(ctx context.Context, task *entity.Task, checklist []entity.ChecklistItem) (bool, error) {
	existing, err := s.tasks.FindByStaffDateTitle(ctx, task.StaffID, task.TaskDate, task.Title)
	if err != nil {
		return false, fmt.Errorf("find task: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, port.ErrDuplicateTask) {
			return false, nil
		}
		return false, fmt.Errorf("create task: %w", err)
	}

	if len(checklist) == 0 {
		return true, nil
	}
	// fresh copies, not done
	items := make([]*entity.ChecklistItem, 0, len(checklist))
	for _, it := range checklist {
		items = append(items, &entity.ChecklistItem{Text: it.Text, SortOrder: it.SortOrder})
	}
	if err := s.checklists.CreateItems(ctx, task.ID, items); err != nil {
		return false, fmt.Errorf("create checklist: %w", err)
	}
	return true, nil
}

func skeleton(texts []string) []entity.ChecklistItem {
	items := make([]entity.ChecklistItem, len(texts))
	for i, text := range texts {
		items[i] = entity.ChecklistItem{Text: text, SortOrder: i}
	}
	return items
}

func materializedEvent(task *entity.Task, actor *entity.Actor, source string) *event.Event {
	return event.NewEvent(event.TypeTaskMaterialized, task.ID, task.StaffID, task.Date(), map[string]interface{}{
		"title":  task.Title,
		"source": source,
	}).By(actor.CreatedBy())
}
