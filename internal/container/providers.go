package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/officesync/timeline/internal/infrastructure/cache"
	"github.com/officesync/timeline/internal/infrastructure/export"
	infraLark "github.com/officesync/timeline/internal/infrastructure/external/lark"
	"github.com/officesync/timeline/internal/infrastructure/persistence/repository"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"github.com/officesync/timeline/internal/infrastructure/worker"
	"github.com/officesync/timeline/migrations"
	"github.com/officesync/timeline/pkg/database"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// CacheBundle holds the Redis client and the layout cache built on it.
type CacheBundle struct {
	Client *redis.Client
	Layout port.LayoutCache
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Task:         repository.NewTaskRepository(sqlDB, logger),
		Checklist:    repository.NewChecklistRepository(sqlDB, logger),
		Template:     repository.NewTemplateRepository(sqlDB, logger),
		Attachment:   repository.NewAttachmentRepository(sqlDB, logger),
		Mention:      repository.NewMentionRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		Staff:        repository.NewStaffRepository(sqlDB, logger),
	}, nil
}

// ProvideCache connects to Redis when an address is configured.
// It returns (nil, nil) when caching is disabled.
func ProvideCache(ctx context.Context, cfg *CacheConfig, logger *zap.Logger) (*CacheBundle, error) {
	if cfg == nil || cfg.Addr == "" {
		logger.Info("Layout cache disabled")
		return nil, nil
	}

	cacheCfg := cache.Config{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TTL:       cfg.TTL,
		KeyPrefix: cfg.Prefix,
	}
	client, err := cache.NewClient(ctx, cacheCfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Layout cache connected", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.TTL))
	return &CacheBundle{
		Client: client,
		Layout: cache.NewLayoutCache(client, cacheCfg, logger),
	}, nil
}

// ProvideMessenger creates the Lark chat sender, or nil when Lark is not configured.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) port.MessageSender {
	if cfg == nil || cfg.AppID == "" {
		logger.Info("Lark notifications disabled")
		return nil
	}
	return infraLark.NewMessenger(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Cache      port.LayoutCache
	Messenger  port.MessageSender
	Layout     LayoutConfig
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// event handlers they rely on.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("transaction manager and dispatcher are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	emitter := service.NewNotificationEmitter(repos.Notification, deps.Dispatcher, log)
	service.NewMentionNotifier(repos.Mention, emitter, log).Register(deps.Dispatcher)
	if deps.Messenger != nil {
		service.NewChatRelay(repos.Staff, deps.Messenger, log).Register(deps.Dispatcher)
	}
	service.RegisterLayoutInvalidation(deps.Dispatcher, deps.Cache)

	opts := timeline.DefaultOptions()
	if deps.Layout.PxPerHour > 0 {
		opts.StartHour = deps.Layout.StartHour
		opts.PxPerHour = deps.Layout.PxPerHour
	}
	if deps.Layout.MinHeight > 0 {
		opts.MinHeight = deps.Layout.MinHeight
	}

	tasks := service.NewTaskService(repos.Task, repos.Checklist, repos.Attachment, repos.Mention, repos.Template,
		emitter, deps.TxManager, deps.Dispatcher, log)

	return &ServiceBundle{
		Materializer: service.NewRoutineMaterializer(repos.Staff, repos.Template, repos.Task, repos.Checklist,
			deps.TxManager, deps.Dispatcher, log),
		Completion: service.NewCompletionService(repos.Task, repos.Checklist, repos.Attachment,
			deps.TxManager, deps.Dispatcher, log),
		Task:     tasks,
		Template: service.NewTemplateService(repos.Template, log),
		Layout: service.NewLayoutService(repos.Task, repos.Staff, tasks, deps.Cache,
			export.NewXLSXExporter(deps.Logger), opts, log),
		Notification: service.NewNotificationService(repos.Notification, log),
	}, nil
}

// ProvideWorkers registers the background workers. Nothing is started here.
func ProvideWorkers(materializer service.RoutineMaterializer, cfg *SweeperConfig, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg != nil && cfg.Enabled {
		manager.Register(worker.NewRoutineSweeper(materializer, worker.SweeperConfig{
			Schedule:   cfg.Schedule,
			WindowDays: cfg.WindowDays,
			RunOnStart: cfg.RunOnStart,
		}, logger))
	}
	return manager
}
