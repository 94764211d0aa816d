package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweeperConfig holds the schedule of the periodic routine sweep
type SweeperConfig struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@daily".
	Schedule   string
	WindowDays int
	RunOnStart bool
}

// RoutineSweeper materializes routines for every active staff member over a
// rolling window, on a cron schedule. A tick that fires while the previous
// sweep is still running is skipped.
type RoutineSweeper struct {
	materializer service.RoutineMaterializer
	config       SweeperConfig
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	running atomic.Bool
}

// NewRoutineSweeper creates a new RoutineSweeper
func NewRoutineSweeper(materializer service.RoutineMaterializer, config SweeperConfig, logger *zap.Logger) *RoutineSweeper {
	if config.Schedule == "" {
		config.Schedule = "0 1 * * *"
	}
	if config.WindowDays <= 0 {
		config.WindowDays = service.BatchWindowDays
	}
	return &RoutineSweeper{
		materializer: materializer,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// Name returns the worker name
func (s *RoutineSweeper) Name() string {
	return "routine-sweeper"
}

// Start schedules the sweep. Sweeps run with ctx, so cancelling it stops an
// in-flight sweep between units.
func (s *RoutineSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("routine sweeper already started")
	}

	c := cron.New()
	if _, err := c.AddJob(s.config.Schedule, s.scheduledJob()); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	s.ctx = ctx
	s.cron = c
	c.Start()

	s.logger.Info("Routine sweeper scheduled",
		zap.String("schedule", s.config.Schedule),
		zap.Int("window_days", s.config.WindowDays))

	if s.config.RunOnStart {
		go s.RunOnce(ctx)
	}
	return nil
}

// Stop unschedules the sweep and waits for a running one to return
func (s *RoutineSweeper) Stop() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	return nil
}

// scheduledJob wraps a sweep for cron. Panics are recovered and a tick that
// fires while the previous one still runs is dropped.
func (s *RoutineSweeper) scheduledJob() cron.Job {
	logger := cronLogger{s.logger}
	return cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(func() {
			ctx := s.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			s.RunOnce(ctx)
		}))
}

// RunOnce sweeps the window starting today. It returns false without doing
// anything when another sweep is in progress, which covers a run-on-start
// sweep racing the first scheduled tick.
func (s *RoutineSweeper) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Routine sweep still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	window, err := entity.NewDateWindow(s.now(), s.config.WindowDays)
	if err != nil {
		s.logger.Error("Invalid sweep window", zap.Error(err))
		return true
	}

	start := time.Now()
	result, err := s.materializer.MaterializeRoutines(ctx, nil, service.AllStaff(), window)
	if err != nil {
		s.logger.Error("Routine sweep failed", zap.Error(err))
		return true
	}

	fields := []zap.Field{
		zap.String("from", entity.FormatDate(window.Start)),
		zap.String("to", entity.FormatDate(window.End())),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", time.Since(start)),
	}
	if len(result.Errors) > 0 {
		s.logger.Warn("Routine sweep finished with errors", fields...)
	} else {
		s.logger.Info("Routine sweep finished", fields...)
	}
	return true
}

// cronLogger routes cron's own messages to zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
