package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers contains HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger, now: time.Now}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	var checks map[string]string
	if h.services.Health != nil {
		var healthy bool
		checks, healthy = h.services.Health(c.Request.Context())
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

type generateRequest struct {
	StaffID   int64  `json:"staff_id"`
	All       bool   `json:"all"`
	StartDate string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	Days      int    `json:"days" binding:"omitempty,min=1"`
}

// GenerateRoutines handles POST /api/routines/generate
func (h *Handlers) GenerateRoutines(c *gin.Context) {
	var req generateRequest
	if !h.bind(c, &req) {
		return
	}
	if req.All == (req.StaffID != 0) {
		h.badRequest(c, "exactly one of staff_id or all is required")
		return
	}
	if req.Days > service.BatchWindowDays {
		h.badRequest(c, fmt.Sprintf("days must not exceed %d", service.BatchWindowDays))
		return
	}
	// an interactive generate covers one day unless a window is asked for
	if req.Days == 0 {
		req.Days = 1
	}

	start := entity.DateOf(h.now())
	if req.StartDate != "" {
		d, err := entity.ParseDate(req.StartDate)
		if err != nil {
			h.badRequest(c, err.Error())
			return
		}
		start = d
	}

	selector := service.SingleStaff(req.StaffID)
	if req.All {
		selector = service.AllStaff()
	}

	window, err := entity.NewDateWindow(start, req.Days)
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.services.Materializer.MaterializeRoutines(c.Request.Context(), actorFrom(c), selector, window)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, result)
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var input service.CreateTaskInput
	if !h.bind(c, &input) {
		return
	}
	detail, err := h.services.Tasks.CreateTask(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	detail, err := h.services.Tasks.GetTask(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, detail)
}

// ListTasks handles GET /api/tasks?staff_id=&date=
func (h *Handlers) ListTasks(c *gin.Context) {
	actor := actorFrom(c)
	staffID, ok := h.staffQuery(c, actor)
	if !ok {
		return
	}
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}
	tasks, err := h.services.Tasks.ListDay(c.Request.Context(), actor, staffID, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, tasks)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetTaskStatus handles POST /api/tasks/:id/status
func (h *Handlers) SetTaskStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	task, err := h.services.Completion.SetTaskStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, task)
}

// ToggleChecklistItem handles POST /api/checklist/:id/toggle
func (h *Handlers) ToggleChecklistItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.services.Completion.ToggleChecklistItem(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, result)
}

type attachmentRequest struct {
	TaskID int64  `json:"task_id" binding:"required,gt=0"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Type   string `json:"type"`
}

// AddAttachment handles POST /api/attachments
func (h *Handlers) AddAttachment(c *gin.Context) {
	var req attachmentRequest
	if !h.bind(c, &req) {
		return
	}
	att, err := h.services.Completion.AddAttachment(c.Request.Context(), actorFrom(c), service.AttachmentInput{
		TaskID: req.TaskID,
		Name:   req.Name,
		URL:    req.URL,
		Type:   req.Type,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: att})
}

// DeleteAttachment handles DELETE /api/attachments/:id
func (h *Handlers) DeleteAttachment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	status, err := h.services.Completion.DeleteAttachment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, gin.H{"task_status": status})
}

// ListTemplates handles GET /api/templates?department=
// Staff see their own department unless they name another one.
func (h *Handlers) ListTemplates(c *gin.Context) {
	dept := c.Query("department")
	if dept == "" {
		dept = actorFrom(c).Department
	}
	templates, err := h.services.Templates.List(c.Request.Context(), dept)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, templates)
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var input service.TemplateInput
	if !h.bind(c, &input) {
		return
	}
	tpl, err := h.services.Templates.Create(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: tpl})
}

// UpdateTemplate handles PUT /api/templates/:id
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var input service.TemplateInput
	if !h.bind(c, &input) {
		return
	}
	tpl, err := h.services.Templates.Update(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, tpl)
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.services.Templates.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DayTimeline handles GET /api/staff/:id/timeline?date=
func (h *Handlers) DayTimeline(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}
	layout, err := h.services.Layout.DayLayout(c.Request.Context(), actorFrom(c), id, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, layout)
}

// ExportTimeline handles GET /api/staff/:id/timeline/export?date=
func (h *Handlers) ExportTimeline(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}

	// Buffer so a failed export still gets a JSON error instead of a truncated file.
	var buf bytes.Buffer
	if err := h.services.Layout.ExportDay(c.Request.Context(), actorFrom(c), id, date, &buf); err != nil {
		h.writeError(c, err)
		return
	}
	filename := fmt.Sprintf("timeline-%d-%s.xlsx", id, entity.FormatDate(date))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// TeamTimeline handles GET /api/timeline?date=&staff_ids=1,2,3
func (h *Handlers) TeamTimeline(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}
	var ids []int64
	if raw := c.Query("staff_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				h.badRequest(c, "staff_ids must be a comma separated list of ids")
				return
			}
			ids = append(ids, id)
		}
	}
	rows, err := h.services.Layout.TeamLayout(c.Request.Context(), actorFrom(c), ids, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, rows)
}

// ListNotifications handles GET /api/notifications?limit=
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, "limit must be a number")
			return
		}
		limit = n
	}
	notes, err := h.services.Notifications.List(c.Request.Context(), actorFrom(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.ok(c, notes)
}

func (h *Handlers) ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// staffQuery defaults to the actor's own timeline
func (h *Handlers) staffQuery(c *gin.Context, actor *entity.Actor) (int64, bool) {
	raw := c.Query("staff_id")
	if raw == "" {
		return actor.UserID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid staff_id")
		return 0, false
	}
	return id, true
}

// dateQuery defaults to today
func (h *Handlers) dateQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return entity.DateOf(h.now()), true
	}
	date, err := entity.ParseDate(raw)
	if err != nil {
		h.badRequest(c, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, Response{Success: false, Error: apperr.Message(err)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindGateRejection:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
