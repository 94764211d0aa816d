package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const templateColumns = `
	id, department, title, description, routine_days, default_start_time,
	duration_hours, checklist_template, start_date, is_active, created_by, created_at`

// TemplateRepository implements port.TemplateStore
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new routine template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateStore {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveTemplates returns a department's active templates
func (r *TemplateRepository) ListActiveTemplates(ctx context.Context, department string) ([]*entity.RoutineTemplate, error) {
	query := `SELECT` + templateColumns + `
		FROM routine_templates
		WHERE department = ? AND is_active = 1
		ORDER BY id`

	return r.queryTemplates(ctx, query, department)
}

// List returns all templates, or one department's when department is set
func (r *TemplateRepository) List(ctx context.Context, department string) ([]*entity.RoutineTemplate, error) {
	if department == "" {
		return r.queryTemplates(ctx, `SELECT`+templateColumns+` FROM routine_templates ORDER BY department, id`)
	}
	return r.queryTemplates(ctx, `SELECT`+templateColumns+` FROM routine_templates WHERE department = ? ORDER BY id`, department)
}

// GetByID retrieves a template by its ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.RoutineTemplate, error) {
	query := `SELECT` + templateColumns + ` FROM routine_templates WHERE id = ?`

	tpl, err := r.scanTemplate(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

// FindByDepartmentTitle returns the first template with this department and title
func (r *TemplateRepository) FindByDepartmentTitle(ctx context.Context, department, title string) (*entity.RoutineTemplate, error) {
	query := `SELECT` + templateColumns + `
		FROM routine_templates
		WHERE department = ? AND title = ?
		ORDER BY id LIMIT 1`

	tpl, err := r.scanTemplate(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, department, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return tpl, nil
}

// Create inserts a template
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.RoutineTemplate) error {
	query := `
		INSERT INTO routine_templates (
			department, title, description, routine_days, default_start_time,
			duration_hours, checklist_template, start_date, is_active, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	days, checklist, err := encodeTemplateLists(tpl)
	if err != nil {
		return err
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		tpl.Department,
		tpl.Title,
		nullString(tpl.Description),
		days,
		tpl.DefaultStartTime.String(),
		tpl.DurationHours,
		checklist,
		nullDate(tpl.StartDate),
		tpl.IsActive,
		nullInt64(tpl.CreatedBy),
		tpl.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create template",
			zap.String("department", tpl.Department),
			zap.String("title", tpl.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tpl.ID = id
	return nil
}

// Update overwrites every editable column of a template
func (r *TemplateRepository) Update(ctx context.Context, tpl *entity.RoutineTemplate) error {
	query := `
		UPDATE routine_templates SET
			department = ?, title = ?, description = ?, routine_days = ?,
			default_start_time = ?, duration_hours = ?, checklist_template = ?,
			start_date = ?, is_active = ?
		WHERE id = ?
	`

	days, checklist, err := encodeTemplateLists(tpl)
	if err != nil {
		return err
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		tpl.Department,
		tpl.Title,
		nullString(tpl.Description),
		days,
		tpl.DefaultStartTime.String(),
		tpl.DurationHours,
		checklist,
		nullDate(tpl.StartDate),
		tpl.IsActive,
		tpl.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update template", zap.Int64("id", tpl.ID), zap.Error(err))
		return fmt.Errorf("failed to update template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("template not found: %d", tpl.ID)
	}
	return nil
}

// Delete removes a template. Tasks already materialized from it stay.
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM routine_templates WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("template not found: %d", id)
	}
	return nil
}

func (r *TemplateRepository) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]*entity.RoutineTemplate, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query templates", zap.Error(err))
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.RoutineTemplate
	for rows.Next() {
		tpl, err := r.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

func (r *TemplateRepository) scanTemplate(row rowScanner) (*entity.RoutineTemplate, error) {
	var (
		tpl         entity.RoutineTemplate
		description sql.NullString
		days        string
		start       string
		checklist   string
		startDate   sql.NullString
		createdBy   sql.NullInt64
	)

	if err := row.Scan(
		&tpl.ID,
		&tpl.Department,
		&tpl.Title,
		&description,
		&days,
		&start,
		&tpl.DurationHours,
		&checklist,
		&startDate,
		&tpl.IsActive,
		&createdBy,
		&tpl.CreatedAt,
	); err != nil {
		return nil, err
	}

	tpl.Description = description.String
	tpl.CreatedBy = int64Ptr(createdBy)
	tpl.DefaultStartTime = clockFrom(sql.NullString{String: start, Valid: true})

	// An unreadable template applies on no day; the materializer skips it.
	if err := json.Unmarshal([]byte(days), &tpl.RoutineDays); err != nil {
		r.logger.Error("Ignoring unreadable template routine days",
			zap.Int64("template_id", tpl.ID),
			zap.String("routine_days", days),
			zap.Error(err))
		tpl.RoutineDays = 0
	}
	if err := json.Unmarshal([]byte(checklist), &tpl.ChecklistTemplate); err != nil {
		r.logger.Error("Ignoring unreadable checklist template",
			zap.Int64("template_id", tpl.ID),
			zap.Error(err))
		tpl.ChecklistTemplate = nil
	}
	if startDate.Valid && startDate.String != "" {
		d, err := entity.ParseDate(startDate.String)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", tpl.ID, err)
		}
		tpl.StartDate = &d
	}

	return &tpl, nil
}

func encodeTemplateLists(tpl *entity.RoutineTemplate) (string, string, error) {
	days, err := json.Marshal(tpl.RoutineDays)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode routine days: %w", err)
	}
	items := tpl.ChecklistTemplate
	if items == nil {
		items = []string{}
	}
	checklist, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode checklist template: %w", err)
	}
	return string(days), string(checklist), nil
}

func nullDate(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: entity.FormatDate(*d), Valid: true}
}

var _ port.TemplateStore = (*TemplateRepository)(nil)
