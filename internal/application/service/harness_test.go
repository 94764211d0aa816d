package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/officesync/timeline/internal/infrastructure/persistence/repository"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"github.com/officesync/timeline/migrations"
	"github.com/officesync/timeline/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockSender records chat pushes
type mockSender struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
}

func newMockSender() *mockSender {
	return &mockSender{messages: make(map[string][]string)}
}

func (m *mockSender) SendMessage(ctx context.Context, openID string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages[openID] = append(m.messages[openID], content)
	return nil
}

func (m *mockSender) sent(openID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages[openID]...)
}

func (m *mockSender) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}

// memoryCache is a LayoutCache backed by a map
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*timeline.Layout
	hits    int
	evicted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*timeline.Layout{}}
}

func cacheKey(staffID int64, date time.Time) string {
	return fmt.Sprintf("%d/%s", staffID, entity.FormatDate(date))
}

func (c *memoryCache) Get(ctx context.Context, staffID int64, date time.Time) (*timeline.Layout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.entries[cacheKey(staffID, date)]
	if ok {
		c.hits++
	}
	return l, ok
}

func (c *memoryCache) Set(ctx context.Context, staffID int64, date time.Time, layout *timeline.Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(staffID, date)] = layout
}

func (c *memoryCache) Evict(ctx context.Context, staffID int64, date time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(staffID, date)
	delete(c.entries, key)
	c.evicted = append(c.evicted, key)
}

// harness wires the services to SQLite repositories on a fresh database
type harness struct {
	db            *sql.DB
	tx            port.TransactionManager
	tasks         port.TaskRepository
	checklists    port.ChecklistRepository
	templateStore port.TemplateStore
	attachments   port.AttachmentRepository
	mentions      port.MentionRepository
	notifications port.NotificationRepository
	staff         port.StaffDirectory
	events        dispatcher.Dispatcher
	cache         *memoryCache
	sender        *mockSender

	materializer RoutineMaterializer
	completion   CompletionService
	taskSvc      TaskService
	templateSvc  TemplateService
	layoutSvc    LayoutService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS))

	h := &harness{
		db:            db.DB,
		tx:            sqlite.NewDB(db.DB, logger),
		tasks:         repository.NewTaskRepository(db.DB, logger),
		checklists:    repository.NewChecklistRepository(db.DB, logger),
		templateStore: repository.NewTemplateRepository(db.DB, logger),
		attachments:   repository.NewAttachmentRepository(db.DB, logger),
		mentions:      repository.NewMentionRepository(db.DB, logger),
		notifications: repository.NewNotificationRepository(db.DB, logger),
		staff:         repository.NewStaffRepository(db.DB, logger),
		events:        dispatcher.NewDispatcher(),
		cache:         newMemoryCache(),
		sender:        newMockSender(),
	}
	h.build(h.tx)
	return h
}

// build (re)creates the services around txManager
func (h *harness) build(txManager port.TransactionManager) {
	log := &mockLogger{}

	h.events = dispatcher.NewDispatcher()
	emitter := NewNotificationEmitter(h.notifications, h.events, log)
	NewMentionNotifier(h.mentions, emitter, log).Register(h.events)
	NewChatRelay(h.staff, h.sender, log).Register(h.events)
	RegisterLayoutInvalidation(h.events, h.cache)

	h.materializer = NewRoutineMaterializer(h.staff, h.templateStore, h.tasks, h.checklists, txManager, h.events, log)
	h.completion = NewCompletionService(h.tasks, h.checklists, h.attachments, txManager, h.events, log)
	h.taskSvc = NewTaskService(h.tasks, h.checklists, h.attachments, h.mentions, h.templateStore, emitter, txManager, h.events, log)
	h.templateSvc = NewTemplateService(h.templateStore, log)
	h.layoutSvc = NewLayoutService(h.tasks, h.staff, h.taskSvc, h.cache, nil, timeline.DefaultOptions(), log)
}

func (h *harness) seedStaff(t *testing.T, name, department string) *entity.Staff {
	t.Helper()
	res, err := h.db.Exec(`INSERT INTO users (name, email, role, is_active) VALUES (?, ?, ?, 1)`,
		name, name+"@example.com", department)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return &entity.Staff{ID: id, Name: name, Department: department, IsActive: true}
}

// linkChat gives a staff member a chat account
func (h *harness) linkChat(t *testing.T, staffID int64, openID string) {
	t.Helper()
	_, err := h.db.Exec(`UPDATE users SET lark_open_id = ? WHERE id = ?`, openID, staffID)
	require.NoError(t, err)
}

// drain waits for background deliveries. The dispatcher is closed afterwards.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.events.Close())
}

func (h *harness) seedTemplate(t *testing.T, tpl *entity.RoutineTemplate) *entity.RoutineTemplate {
	t.Helper()
	tpl.IsActive = true
	if tpl.DurationHours == 0 {
		tpl.DurationHours = 1
	}
	require.NoError(t, h.templateStore.Create(context.Background(), tpl))
	return tpl
}

// seedTask stores a task with a checklist; done lists the indexes already ticked
func (h *harness) seedTask(t *testing.T, task *entity.Task, checklist []string, done ...int) *entity.Task {
	t.Helper()
	ctx := context.Background()
	if task.Status == "" {
		task.Status = "todo"
	}
	if task.Category == "" {
		task.Category = entity.CategoryJobdesk
	}
	require.NoError(t, h.tasks.Create(ctx, task))

	ticked := map[int]bool{}
	for _, i := range done {
		ticked[i] = true
	}
	items := make([]*entity.ChecklistItem, 0, len(checklist))
	for i, text := range checklist {
		it := &entity.ChecklistItem{Text: text, SortOrder: i}
		if ticked[i] {
			it.SetDone(true, time.Now())
		}
		items = append(items, it)
	}
	if len(items) > 0 {
		require.NoError(t, h.checklists.CreateItems(ctx, task.ID, items))
	}
	return task
}

func (h *harness) items(t *testing.T, taskID int64) []*entity.ChecklistItem {
	t.Helper()
	items, err := h.checklists.ListByTask(context.Background(), taskID)
	require.NoError(t, err)
	return items
}

func (h *harness) task(t *testing.T, id int64) *entity.Task {
	t.Helper()
	task, err := h.tasks.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func (h *harness) dayTasks(t *testing.T, staffID int64, day string) []*entity.Task {
	t.Helper()
	tasks, err := h.tasks.ListByStaffDate(context.Background(), staffID, mustDate(day))
	require.NoError(t, err)
	return tasks
}

func mustDate(s string) time.Time {
	d, err := entity.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func actorOf(s *entity.Staff) *entity.Actor {
	return entity.ActorFromStaff(s)
}
