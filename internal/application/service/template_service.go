package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
)

// TemplateInput creates or replaces a department routine template
type TemplateInput struct {
	Department        string   `json:"department" validate:"required,max=100"`
	Title             string   `json:"title" validate:"required,max=200"`
	Description       string   `json:"description"`
	RoutineDays       []int    `json:"routine_days" validate:"required,min=1,dive,min=0,max=6"`
	DefaultStartTime  string   `json:"default_start_time" validate:"omitempty,clock"`
	DurationHours     float64  `json:"duration_hours" validate:"omitempty,gt=0,lte=24"`
	ChecklistTemplate []string `json:"checklist_template"`
	StartDate         string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive          *bool    `json:"is_active"`
}

// TemplateService administers department routine templates
type TemplateService interface {
	List(ctx context.Context, department string) ([]*entity.RoutineTemplate, error)
	Create(ctx context.Context, actor *entity.Actor, input TemplateInput) (*entity.RoutineTemplate, error)
	Update(ctx context.Context, actor *entity.Actor, id int64, input TemplateInput) (*entity.RoutineTemplate, error)
	Delete(ctx context.Context, actor *entity.Actor, id int64) error
}

type templateServiceImpl struct {
	templates port.TemplateStore
	logger    Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates port.TemplateStore, logger Logger) TemplateService {
	return &templateServiceImpl{
		templates: templates,
		logger:    logger,
	}
}

func (s *templateServiceImpl) List(ctx context.Context, department string) ([]*entity.RoutineTemplate, error) {
	templates, err := s.templates.List(ctx, strings.TrimSpace(department))
	if err != nil {
		s.logger.Error("Failed to list templates", "error", err, "department", department)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if templates == nil {
		templates = []*entity.RoutineTemplate{}
	}
	return templates, nil
}

func (s *templateServiceImpl) Create(ctx context.Context, actor *entity.Actor, input TemplateInput) (*entity.RoutineTemplate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	tpl, err := buildTemplate(input)
	if err != nil {
		return nil, err
	}
	tpl.CreatedBy = actor.CreatedBy()

	if err := s.templates.Create(ctx, tpl); err != nil {
		s.logger.Error("Failed to create template", "error", err, "department", tpl.Department, "title", tpl.Title)
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template created", "template_id", tpl.ID, "department", tpl.Department, "title", tpl.Title)
	return tpl, nil
}

func (s *templateServiceImpl) Update(ctx context.Context, actor *entity.Actor, id int64, input TemplateInput) (*entity.RoutineTemplate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	existing, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("template", id)
	}

	tpl, err := buildTemplate(input)
	if err != nil {
		return nil, err
	}
	tpl.ID = existing.ID
	tpl.CreatedBy = existing.CreatedBy
	tpl.CreatedAt = existing.CreatedAt

	if err := s.templates.Update(ctx, tpl); err != nil {
		s.logger.Error("Failed to update template", "error", err, "template_id", id)
		return nil, fmt.Errorf("update template: %w", err)
	}

	s.logger.Info("Template updated", "template_id", id, "is_active", tpl.IsActive)
	return tpl, nil
}

// Delete removes a template. Tasks it already produced are kept.
func (s *templateServiceImpl) Delete(ctx context.Context, actor *entity.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	existing, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}
	if existing == nil {
		return apperr.NotFound("template", id)
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete template", "error", err, "template_id", id)
		return fmt.Errorf("delete template: %w", err)
	}

	s.logger.Info("Template deleted", "template_id", id)
	return nil
}

func requireAdmin(actor *entity.Actor) error {
	if actor == nil || actor.IsAdmin() {
		return nil
	}
	return apperr.Forbidden("only administrators may manage routine templates")
}

func buildTemplate(input TemplateInput) (*entity.RoutineTemplate, error) {
	input.Department = strings.TrimSpace(input.Department)
	input.Title = strings.TrimSpace(input.Title)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	days, err := entity.NewWeekdayMask(input.RoutineDays...)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	startText := input.DefaultStartTime
	if startText == "" {
		startText = entity.DefaultTemplateStart
	}
	start, err := entity.ParseClockTime(startText)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	duration := input.DurationHours
	if duration == 0 {
		duration = entity.DefaultTemplateDuration
	}

	checklist := make([]string, 0, len(input.ChecklistTemplate))
	for _, item := range input.ChecklistTemplate {
		if item = strings.TrimSpace(item); item != "" {
			checklist = append(checklist, item)
		}
	}

	tpl := &entity.RoutineTemplate{
		Department:        input.Department,
		Title:             input.Title,
		Description:       strings.TrimSpace(input.Description),
		RoutineDays:       days,
		DefaultStartTime:  start,
		DurationHours:     duration,
		ChecklistTemplate: checklist,
		IsActive:          input.IsActive == nil || *input.IsActive,
	}

	if input.StartDate != "" {
		d, err := entity.ParseDate(input.StartDate)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		tpl.StartDate = &d
	}
	return tpl, nil
}
