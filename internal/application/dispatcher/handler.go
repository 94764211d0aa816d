package dispatcher

import (
	"context"

	"github.com/officesync/timeline/internal/domain/event"
)

// Handler reacts to a task event
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}
