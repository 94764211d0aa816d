package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/officesync/timeline/internal/domain/event"
)

// Dispatcher routes task events to subscribed handlers.
//
// Services call Dispatch inside their transaction for handlers whose writes
// must commit with the change (mention notification on completion), and
// Notify after commit for side effects such as cache eviction. Slow external
// deliveries are queued on an Outbox during the transaction and flushed to
// DispatchAsync once it commits.
type Dispatcher interface {
	// Subscribe registers handler under name for each of the given types
	Subscribe(name string, handler Handler, types ...event.Type)

	// Dispatch runs the handlers of evt.Type in subscription order and
	// returns the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// Notify runs the handlers of every event, logging failures instead of
	// returning them
	Notify(ctx context.Context, evts ...*event.Event)

	// DispatchAsync runs handlers in the background; Close waits for them
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Handlers lists subscriber names for an event type
	Handlers(eventType event.Type) []string

	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]subscription
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]subscription),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], subscription{name: name, handler: handler})
	}

	d.logInfo("Handler registered", "handler_name", name, "event_types", types)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, sub := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, sub); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"task_id", evt.TaskID,
				"handler_name", sub.name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", sub.name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) Notify(ctx context.Context, evts ...*event.Event) {
	if d.closed.Load() {
		return
	}

	for _, evt := range evts {
		for _, sub := range d.snapshot(evt.Type) {
			if err := d.safeExecute(ctx, evt, sub); err != nil {
				d.logError("Post-commit handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"task_id", evt.TaskID,
					"handler_name", sub.name,
					"error", err,
				)
			}
		}
	}
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logError("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}

	for _, sub := range d.snapshot(evt.Type) {
		d.wg.Add(1)
		go func(s subscription) {
			defer d.wg.Done()
			if err := d.safeExecute(ctx, evt, s); err != nil {
				d.logError("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", s.name,
					"error", err,
				)
			}
		}(sub)
	}
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	subs := d.snapshot(eventType)
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.name
	}
	return names
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.logInfo("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

func (d *eventDispatcher) snapshot(t event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]subscription(nil), d.handlers[t]...)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", sub.name,
				"panic", r,
			)
		}
	}()

	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
