package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/event"
	"github.com/officesync/timeline/internal/domain/timeline"
	"golang.org/x/sync/errgroup"
)

// maxTeamConcurrency bounds parallel day layouts in a team view
const maxTeamConcurrency = 8

// StaffLayout is one member's row of a team view
type StaffLayout struct {
	StaffID int64            `json:"staff_id"`
	Name    string           `json:"name"`
	Layout  *timeline.Layout `json:"layout"`
}

// LayoutService computes day views, with caching, for one or many staff
type LayoutService interface {
	DayLayout(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) (*timeline.Layout, error)
	TeamLayout(ctx context.Context, actor *entity.Actor, staffIDs []int64, date time.Time) ([]StaffLayout, error)
	ExportDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time, w io.Writer) error
}

type layoutServiceImpl struct {
	tasks    port.TaskRepository
	staff    port.StaffDirectory
	taskSvc  TaskService
	cache    port.LayoutCache
	exporter port.TimelineExporter
	opts     timeline.Options
	logger   Logger
}

// NewLayoutService creates a new LayoutService. cache may be nil.
func NewLayoutService(
	tasks port.TaskRepository,
	staff port.StaffDirectory,
	taskSvc TaskService,
	cache port.LayoutCache,
	exporter port.TimelineExporter,
	opts timeline.Options,
	logger Logger,
) LayoutService {
	return &layoutServiceImpl{
		tasks:    tasks,
		staff:    staff,
		taskSvc:  taskSvc,
		cache:    cache,
		exporter: exporter,
		opts:     opts,
		logger:   logger,
	}
}

// DayLayout returns the placements of one staff member's day
func (s *layoutServiceImpl) DayLayout(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) (*timeline.Layout, error) {
	if err := requireAccess(actor, staffID); err != nil {
		return nil, err
	}
	return s.dayLayout(ctx, staffID, date)
}

func (s *layoutServiceImpl) dayLayout(ctx context.Context, staffID int64, date time.Time) (*timeline.Layout, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, staffID, date); ok {
			return cached, nil
		}
	}

	tasks, err := s.tasks.ListByStaffDate(ctx, staffID, date)
	if err != nil {
		s.logger.Error("Failed to load tasks for layout", "error", err, "staff_id", staffID, "date", entity.FormatDate(date))
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	entries := make([]timeline.Entry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, timeline.EntryFromTask(t))
	}

	layout := timeline.ComputeDayLayout(entries, s.opts)
	for _, r := range layout.Rejected {
		s.logger.Error("Task left out of timeline",
			"task_id", r.TaskID,
			"staff_id", staffID,
			"date", entity.FormatDate(date),
			"reason", r.Reason,
		)
	}

	if s.cache != nil {
		s.cache.Set(ctx, staffID, date, &layout)
	}
	return &layout, nil
}

// TeamLayout lays out several staff members' days in parallel. An empty
// staffIDs means every active staff member. Each list is still computed by
// a single goroutine.
func (s *layoutServiceImpl) TeamLayout(ctx context.Context, actor *entity.Actor, staffIDs []int64, date time.Time) ([]StaffLayout, error) {
	members, err := s.teamMembers(ctx, actor, staffIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]StaffLayout, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTeamConcurrency)

	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			layout, err := s.dayLayout(gctx, m.ID, date)
			if err != nil {
				return fmt.Errorf("staff %d: %w", m.ID, err)
			}
			rows[i] = StaffLayout{StaffID: m.ID, Name: m.Name, Layout: layout}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to compute team layout", "error", err, "date", entity.FormatDate(date))
		return nil, err
	}
	return rows, nil
}

func (s *layoutServiceImpl) teamMembers(ctx context.Context, actor *entity.Actor, staffIDs []int64) ([]*entity.Staff, error) {
	if len(staffIDs) == 0 {
		if actor != nil && !actor.IsAdmin() {
			staffIDs = []int64{actor.UserID}
		} else {
			members, err := s.staff.ListActiveStaff(ctx)
			if err != nil {
				return nil, fmt.Errorf("list active staff: %w", err)
			}
			return members, nil
		}
	}

	members := make([]*entity.Staff, 0, len(staffIDs))
	for _, id := range staffIDs {
		if err := requireAccess(actor, id); err != nil {
			return nil, err
		}
		m, err := s.staff.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get staff: %w", err)
		}
		if m == nil {
			return nil, apperr.NotFound("staff", id)
		}
		members = append(members, m)
	}
	return members, nil
}

// ExportDay writes one staff member's day as a spreadsheet
func (s *layoutServiceImpl) ExportDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("timeline export is not configured")
	}

	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("get staff: %w", err)
	}
	if staff == nil {
		return apperr.NotFound("staff", staffID)
	}

	details, err := s.taskSvc.ListDay(ctx, actor, staffID, date)
	if err != nil {
		return err
	}
	layout, err := s.DayLayout(ctx, actor, staffID, date)
	if err != nil {
		return err
	}

	report := &port.DayReport{Staff: staff, Date: date, Tasks: details, Layout: layout}
	if err := s.exporter.WriteDay(w, report); err != nil {
		s.logger.Error("Failed to export timeline", "error", err, "staff_id", staffID, "date", entity.FormatDate(date))
		return fmt.Errorf("export timeline: %w", err)
	}

	s.logger.Info("Timeline exported", "staff_id", staffID, "date", entity.FormatDate(date), "tasks", len(details))
	return nil
}

// RegisterLayoutInvalidation evicts a cached day whenever one of its tasks changes
func RegisterLayoutInvalidation(d dispatcher.Dispatcher, cache port.LayoutCache) {
	if cache == nil {
		return
	}
	d.Subscribe("layout-cache-evictor", func(ctx context.Context, evt *event.Event) error {
		day, err := entity.ParseDate(evt.TaskDate)
		if err != nil {
			return fmt.Errorf("event %s: %w", evt.ID, err)
		}
		cache.Evict(ctx, evt.StaffID, day)
		return nil
	},
		event.TypeTaskCreated,
		event.TypeTaskMaterialized,
		event.TypeStatusChanged,
		event.TypeChecklistToggled,
		event.TypeAttachmentAdded,
		event.TypeAttachmentDeleted,
	)
}
