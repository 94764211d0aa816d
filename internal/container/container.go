package container

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"github.com/officesync/timeline/internal/infrastructure/worker"
	httpapi "github.com/officesync/timeline/internal/interfaces/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	redis        *redis.Client
	layoutCache  port.LayoutCache
	messenger    port.MessageSender

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Task         port.TaskRepository
	Checklist    port.ChecklistRepository
	Template     port.TemplateStore
	Attachment   port.AttachmentRepository
	Mention      port.MentionRepository
	Notification port.NotificationRepository
	Staff        port.StaffDirectory
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Materializer service.RoutineMaterializer
	Completion   service.CompletionService
	Task         service.TaskService
	Template     service.TemplateService
	Layout       service.LayoutService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the background workers.
// The HTTP server is built separately by HTTPServer.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternal(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.services.Materializer, &c.config.Sweeper, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Strings("workers", c.workers.Running()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.sqlDB == nil {
		set("database", false, "not initialized")
	} else if err := c.sqlDB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	// The cache is optional; an outage only costs latency.
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			status.Components["cache"] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
		} else {
			status.Components["cache"] = ComponentHealth{Healthy: true}
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		running := c.workers.Running()
		msg := "none"
		if len(running) > 0 {
			msg = strings.Join(running, ",")
		}
		set("workers", true, msg)
	}

	return status
}

// HTTPServer builds the HTTP server around the started services.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	cfg := httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}
	return httpapi.NewServer(cfg, httpapi.Services{
		Materializer:  c.services.Materializer,
		Completion:    c.services.Completion,
		Tasks:         c.services.Task,
		Templates:     c.services.Template,
		Layout:        c.services.Layout,
		Notifications: c.services.Notification,
		Staff:         c.repositories.Staff,
		Health:        c.healthChecks,
	}, &zapLoggerAdapter{logger: c.logger}), nil
}

// healthChecks flattens Health for the /health endpoint
func (c *Container) healthChecks(ctx context.Context) (map[string]string, bool) {
	health := c.Health(ctx)
	checks := make(map[string]string, len(health.Components))
	for name, comp := range health.Components {
		if comp.Healthy {
			checks[name] = "ok"
		} else {
			checks[name] = comp.Message
		}
	}
	return checks, health.Overall
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	bundle, err := ProvideCache(c.ctx, &c.config.Cache, c.logger)
	if err != nil {
		return err
	}
	if bundle != nil {
		c.redis = bundle.Client
		c.layoutCache = bundle.Layout
	}

	c.messenger = ProvideMessenger(&c.config.Lark, c.logger)
	return nil
}

func (c *Container) initServices() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Cache:      c.layoutCache,
		Messenger:  c.messenger,
		Layout:     c.config.Layout,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) closeDatabase() error {
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.sqlDB = nil
	return err
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces
// used by the services, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
