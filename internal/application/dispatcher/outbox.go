package dispatcher

import (
	"context"
	"sync"

	"github.com/officesync/timeline/internal/domain/event"
)

// Outbox holds events raised inside a transaction until it commits. Events
// left in an outbox whose transaction rolled back are simply dropped.
type Outbox struct {
	mu     sync.Mutex
	events []*event.Event
}

type outboxKey struct{}

// WithOutbox returns a context carrying a fresh outbox
func WithOutbox(ctx context.Context) (context.Context, *Outbox) {
	o := &Outbox{}
	return context.WithValue(ctx, outboxKey{}, o), o
}

// Defer queues evt on the outbox carried by ctx. It reports false when ctx
// has no outbox.
func Defer(ctx context.Context, evt *event.Event) bool {
	o, ok := ctx.Value(outboxKey{}).(*Outbox)
	if !ok {
		return false
	}
	o.mu.Lock()
	o.events = append(o.events, evt)
	o.mu.Unlock()
	return true
}

// Len returns the number of queued events
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Flush hands the queued events to the async handlers of d and empties the
// outbox. The handlers outlive the request, so ctx cancellation is dropped.
func (o *Outbox) Flush(ctx context.Context, d Dispatcher) {
	o.mu.Lock()
	evts := o.events
	o.events = nil
	o.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	for _, evt := range evts {
		d.DispatchAsync(detached, evt)
	}
}
