package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/officesync/timeline/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

type mockStaff struct {
	members map[int64]*entity.Staff
	err     error
}

func (m *mockStaff) GetByID(ctx context.Context, id int64) (*entity.Staff, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members[id], nil
}

func (m *mockStaff) ListActiveStaff(ctx context.Context) ([]*entity.Staff, error) {
	return nil, nil
}

type mockMaterializer struct {
	materializeFunc func(ctx context.Context, actor *entity.Actor, selector service.StaffSelector, window entity.DateWindow) (*service.MaterializeResult, error)
}

func (m *mockMaterializer) MaterializeRoutines(ctx context.Context, actor *entity.Actor, selector service.StaffSelector, window entity.DateWindow) (*service.MaterializeResult, error) {
	return m.materializeFunc(ctx, actor, selector, window)
}

type mockCompletion struct {
	toggleFunc           func(ctx context.Context, actor *entity.Actor, itemID int64) (*service.ToggleResult, error)
	setStatusFunc        func(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error)
	addAttachmentFunc    func(ctx context.Context, actor *entity.Actor, input service.AttachmentInput) (*entity.Attachment, error)
	deleteAttachmentFunc func(ctx context.Context, actor *entity.Actor, attachmentID int64) (workflow.State, error)
}

func (m *mockCompletion) ToggleChecklistItem(ctx context.Context, actor *entity.Actor, itemID int64) (*service.ToggleResult, error) {
	return m.toggleFunc(ctx, actor, itemID)
}

func (m *mockCompletion) SetTaskStatus(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error) {
	return m.setStatusFunc(ctx, actor, taskID, requested)
}

func (m *mockCompletion) AddAttachment(ctx context.Context, actor *entity.Actor, input service.AttachmentInput) (*entity.Attachment, error) {
	return m.addAttachmentFunc(ctx, actor, input)
}

func (m *mockCompletion) DeleteAttachment(ctx context.Context, actor *entity.Actor, attachmentID int64) (workflow.State, error) {
	return m.deleteAttachmentFunc(ctx, actor, attachmentID)
}

type mockTasks struct {
	createFunc func(ctx context.Context, actor *entity.Actor, input service.CreateTaskInput) (*entity.TaskDetail, error)
	getFunc    func(ctx context.Context, actor *entity.Actor, taskID int64) (*entity.TaskDetail, error)
	listFunc   func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) ([]*entity.TaskDetail, error)
}

func (m *mockTasks) CreateTask(ctx context.Context, actor *entity.Actor, input service.CreateTaskInput) (*entity.TaskDetail, error) {
	return m.createFunc(ctx, actor, input)
}

func (m *mockTasks) GetTask(ctx context.Context, actor *entity.Actor, taskID int64) (*entity.TaskDetail, error) {
	return m.getFunc(ctx, actor, taskID)
}

func (m *mockTasks) ListDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) ([]*entity.TaskDetail, error) {
	return m.listFunc(ctx, actor, staffID, date)
}

type mockTemplates struct {
	listFunc   func(ctx context.Context, department string) ([]*entity.RoutineTemplate, error)
	deleteFunc func(ctx context.Context, actor *entity.Actor, id int64) error
}

func (m *mockTemplates) List(ctx context.Context, department string) ([]*entity.RoutineTemplate, error) {
	return m.listFunc(ctx, department)
}

func (m *mockTemplates) Create(ctx context.Context, actor *entity.Actor, input service.TemplateInput) (*entity.RoutineTemplate, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTemplates) Update(ctx context.Context, actor *entity.Actor, id int64, input service.TemplateInput) (*entity.RoutineTemplate, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTemplates) Delete(ctx context.Context, actor *entity.Actor, id int64) error {
	return m.deleteFunc(ctx, actor, id)
}

type mockLayout struct {
	dayFunc    func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) (*timeline.Layout, error)
	teamFunc   func(ctx context.Context, actor *entity.Actor, staffIDs []int64, date time.Time) ([]service.StaffLayout, error)
	exportFunc func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time, w io.Writer) error
}

func (m *mockLayout) DayLayout(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) (*timeline.Layout, error) {
	return m.dayFunc(ctx, actor, staffID, date)
}

func (m *mockLayout) TeamLayout(ctx context.Context, actor *entity.Actor, staffIDs []int64, date time.Time) ([]service.StaffLayout, error) {
	return m.teamFunc(ctx, actor, staffIDs, date)
}

func (m *mockLayout) ExportDay(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time, w io.Writer) error {
	return m.exportFunc(ctx, actor, staffID, date, w)
}

type mockNotifications struct {
	listFunc func(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error)
}

func (m *mockNotifications) List(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error) {
	return m.listFunc(ctx, actor, limit)
}

var (
	alice = &entity.Staff{ID: 7, Name: "alice", Department: "Sales", IsActive: true}
	admin = &entity.Staff{ID: 1, Name: "root", Department: entity.RoleAdmin, IsActive: true}
	gone  = &entity.Staff{ID: 9, Name: "gone", Department: "Sales", IsActive: false}
)

func newTestServer(services Services) (*Server, *mockLogger) {
	if services.Staff == nil {
		services.Staff = &mockStaff{members: map[int64]*entity.Staff{7: alice, 1: admin, 9: gone}}
	}
	logger := &mockLogger{}
	return NewServer(DefaultServerConfig(), services, logger), logger
}

func do(s *Server, method, path, actor, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestActorMiddleware(t *testing.T) {
	s, _ := newTestServer(Services{
		Notifications: &mockNotifications{listFunc: func(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error) {
			return []*entity.Notification{}, nil
		}},
	})

	tests := []struct {
		name   string
		actor  string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not a number", "abc", http.StatusBadRequest},
		{"unknown user", "404", http.StatusUnauthorized},
		{"inactive user", "9", http.StatusUnauthorized},
		{"active user", "7", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodGet, "/api/notifications", tt.actor, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestActorMiddleware_DirectoryFailure(t *testing.T) {
	s, logger := newTestServer(Services{Staff: &mockStaff{err: errors.New("db down")}})

	w := do(s, http.MethodGet, "/api/notifications", "7", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w).Error)
	assert.NotEmpty(t, logger.errors)
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(Services{})
	w := do(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s, _ = newTestServer(Services{Health: func(ctx context.Context) (map[string]string, bool) {
		return map[string]string{"database": "ping failed", "cache": "ok"}, false
	}})
	w = do(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestGenerateRoutines(t *testing.T) {
	var gotSelector service.StaffSelector
	var gotWindow entity.DateWindow
	var gotActor *entity.Actor
	s, _ := newTestServer(Services{Materializer: &mockMaterializer{
		materializeFunc: func(ctx context.Context, actor *entity.Actor, selector service.StaffSelector, window entity.DateWindow) (*service.MaterializeResult, error) {
			gotActor, gotSelector, gotWindow = actor, selector, window
			return &service.MaterializeResult{Created: 3, Skipped: 1, Errors: []service.UnitError{}}, nil
		},
	}})

	w := do(s, http.MethodPost, "/api/routines/generate", "1", `{"all":true,"start_date":"2024-06-03","days":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotSelector.All)
	assert.Equal(t, "2024-06-03", entity.FormatDate(gotWindow.Start))
	assert.Equal(t, 7, gotWindow.Days)
	assert.Equal(t, int64(1), gotActor.UserID)
	assert.JSONEq(t, `{"success":true,"data":{"created":3,"skipped":1,"errors":[]}}`, w.Body.String())

	w = do(s, http.MethodPost, "/api/routines/generate", "7", `{"staff_id":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), gotSelector.StaffID)
	assert.Equal(t, 1, gotWindow.Days, "defaults to a single day")
	assert.Equal(t, entity.FormatDate(entity.DateOf(time.Now())), entity.FormatDate(gotWindow.Start), "defaults to today")

	w = do(s, http.MethodPost, "/api/routines/generate", "1", `{"all":true,"days":30}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.BatchWindowDays, gotWindow.Days)
}

func TestGenerateRoutines_BadRequests(t *testing.T) {
	s, _ := newTestServer(Services{Materializer: &mockMaterializer{
		materializeFunc: func(ctx context.Context, actor *entity.Actor, selector service.StaffSelector, window entity.DateWindow) (*service.MaterializeResult, error) {
			t.Fatal("materializer must not run")
			return nil, nil
		},
	}})

	for _, body := range []string{
		`{}`,
		`{"all":true,"staff_id":7}`,
		`{"all":true,"days":31}`,
		`{"all":true,"days":-1}`,
		`{"all":true,"start_date":"03/06/2024"}`,
		`not json`,
	} {
		w := do(s, http.MethodPost, "/api/routines/generate", "1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("unknown status %q", "paused"), http.StatusBadRequest, `unknown status "paused"`},
		{"gate", apperr.Gate(apperr.ErrAttachmentRequired), http.StatusUnprocessableEntity, apperr.ErrAttachmentRequired.Error()},
		{"not found", apperr.NotFound("task", 5), http.StatusNotFound, "task 5 not found"},
		{"forbidden", apperr.Forbidden("not your task"), http.StatusForbidden, "not your task"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, logger := newTestServer(Services{Completion: &mockCompletion{
				setStatusFunc: func(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error) {
					return nil, tt.err
				},
			}})

			w := do(s, http.MethodPost, "/api/tasks/5/status", "7", `{"status":"done"}`)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
			assert.Equal(t, tt.status == http.StatusInternalServerError, len(logger.errors) > 0)
		})
	}
}

func TestSetTaskStatus(t *testing.T) {
	s, _ := newTestServer(Services{Completion: &mockCompletion{
		setStatusFunc: func(ctx context.Context, actor *entity.Actor, taskID int64, requested string) (*entity.Task, error) {
			return &entity.Task{ID: taskID, Title: "Report", Status: workflow.State(requested)}, nil
		},
	}})

	w := do(s, http.MethodPost, "/api/tasks/5/status", "7", `{"status":"in-progress"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"in-progress"`)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/tasks/x/status", "7", `{"status":"done"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/tasks/5/status", "7", `{}`).Code)
}

func TestToggleChecklistItem(t *testing.T) {
	s, _ := newTestServer(Services{Completion: &mockCompletion{
		toggleFunc: func(ctx context.Context, actor *entity.Actor, itemID int64) (*service.ToggleResult, error) {
			return &service.ToggleResult{ItemID: itemID, IsDone: true, NewStatus: workflow.StateInProgress, DoneCount: 1, TotalCount: 4}, nil
		},
	}})

	w := do(s, http.MethodPost, "/api/checklist/11/toggle", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"item_id":11,"is_done":true,"new_status":"in-progress","done_count":1,"total_count":4}}`, w.Body.String())
}

func TestAttachments(t *testing.T) {
	var got service.AttachmentInput
	s, _ := newTestServer(Services{Completion: &mockCompletion{
		addAttachmentFunc: func(ctx context.Context, actor *entity.Actor, input service.AttachmentInput) (*entity.Attachment, error) {
			got = input
			return &entity.Attachment{ID: 3, TaskID: input.TaskID, Name: input.Name, URL: input.URL, Type: "link"}, nil
		},
		deleteAttachmentFunc: func(ctx context.Context, actor *entity.Actor, attachmentID int64) (workflow.State, error) {
			return workflow.StateInProgress, nil
		},
	}})

	w := do(s, http.MethodPost, "/api/attachments", "7", `{"task_id":5,"name":"proof","url":"https://example.com/p.png"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, service.AttachmentInput{TaskID: 5, Name: "proof", URL: "https://example.com/p.png"}, got)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/attachments", "7", `{"name":"proof"}`).Code)

	w = do(s, http.MethodDelete, "/api/attachments/3", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"task_status":"in-progress"}}`, w.Body.String())
}

func TestTasks(t *testing.T) {
	var listed struct {
		staffID int64
		date    string
	}
	s, _ := newTestServer(Services{Tasks: &mockTasks{
		createFunc: func(ctx context.Context, actor *entity.Actor, input service.CreateTaskInput) (*entity.TaskDetail, error) {
			return &entity.TaskDetail{Task: &entity.Task{ID: 42, StaffID: input.StaffID, Title: input.Title}, Date: input.Date}, nil
		},
		getFunc: func(ctx context.Context, actor *entity.Actor, taskID int64) (*entity.TaskDetail, error) {
			return nil, apperr.NotFound("task", taskID)
		},
		listFunc: func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) ([]*entity.TaskDetail, error) {
			listed.staffID, listed.date = staffID, entity.FormatDate(date)
			return []*entity.TaskDetail{}, nil
		},
	}})

	w := do(s, http.MethodPost, "/api/tasks", "7", `{"title":"Visit","task_date":"2024-06-03","start_time":"09:00","end_time":"10:00","checklist":["a"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":42`)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/tasks/99", "7", "").Code)

	w = do(s, http.MethodGet, "/api/tasks?date=2024-06-03", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), listed.staffID)
	assert.Equal(t, "2024-06-03", listed.date)

	w = do(s, http.MethodGet, "/api/tasks?staff_id=8&date=2024-06-04", "1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(8), listed.staffID)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/tasks?date=tomorrow", "7", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/tasks?staff_id=-1", "7", "").Code)
}

func TestTemplates(t *testing.T) {
	var dept string
	s, _ := newTestServer(Services{Templates: &mockTemplates{
		listFunc: func(ctx context.Context, department string) ([]*entity.RoutineTemplate, error) {
			dept = department
			return []*entity.RoutineTemplate{}, nil
		},
		deleteFunc: func(ctx context.Context, actor *entity.Actor, id int64) error {
			if !actor.IsAdmin() {
				return apperr.Forbidden("only administrators manage templates")
			}
			return nil
		},
	}})

	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/templates", "7", "").Code)
	assert.Equal(t, "Sales", dept)
	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/templates?department=Ops", "1", "").Code)
	assert.Equal(t, "Ops", dept)

	assert.Equal(t, http.StatusForbidden, do(s, http.MethodDelete, "/api/templates/4", "7", "").Code)
	assert.Equal(t, http.StatusNoContent, do(s, http.MethodDelete, "/api/templates/4", "1", "").Code)
}

func TestTimeline(t *testing.T) {
	var teamIDs []int64
	s, _ := newTestServer(Services{Layout: &mockLayout{
		dayFunc: func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time) (*timeline.Layout, error) {
			return &timeline.Layout{Placements: []timeline.Placement{{TaskID: 1, Top: 80, Height: 80, WidthPct: 100}}}, nil
		},
		teamFunc: func(ctx context.Context, actor *entity.Actor, staffIDs []int64, date time.Time) ([]service.StaffLayout, error) {
			teamIDs = staffIDs
			return []service.StaffLayout{}, nil
		},
		exportFunc: func(ctx context.Context, actor *entity.Actor, staffID int64, date time.Time, w io.Writer) error {
			if staffID == 8 {
				return apperr.Forbidden("not your timeline")
			}
			_, err := w.Write([]byte("xlsx-bytes"))
			return err
		},
	}})

	w := do(s, http.MethodGet, "/api/staff/7/timeline?date=2024-06-03", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"task_id":1`)

	w = do(s, http.MethodGet, "/api/timeline?date=2024-06-03&staff_ids=7,8", "1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7, 8}, teamIDs)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/timeline?staff_ids=7,x", "1", "").Code)

	w = do(s, http.MethodGet, "/api/staff/7/timeline/export?date=2024-06-03", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timeline-7-2024-06-03.xlsx")
	assert.Equal(t, "xlsx-bytes", w.Body.String())

	w = do(s, http.MethodGet, "/api/staff/8/timeline/export?date=2024-06-03", "7", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestListNotifications(t *testing.T) {
	var gotLimit int
	s, _ := newTestServer(Services{Notifications: &mockNotifications{
		listFunc: func(ctx context.Context, actor *entity.Actor, limit int) ([]*entity.Notification, error) {
			gotLimit = limit
			return []*entity.Notification{{ID: 1, UserID: actor.UserID, Title: "Tugas Baru"}}, nil
		},
	}})

	w := do(s, http.MethodGet, "/api/notifications?limit=5", "7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Contains(t, w.Body.String(), `"title":"Tugas Baru"`)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/notifications?limit=many", "7", "").Code)
}
