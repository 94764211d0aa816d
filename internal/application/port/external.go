package port

import (
	"context"
	"io"
	"time"

	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
)

// NotificationEmitter delivers a notification. Emitting never blocks the
// caller's status change on delivery; the in-app record is written inside the
// caller's transaction when one is open.
type NotificationEmitter interface {
	Emit(ctx context.Context, n *entity.Notification) error
}

// MessageSender pushes plain text to a chat user
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}

// LayoutCache stores computed day layouts per staff member and date
type LayoutCache interface {
	// Get returns (nil, false) on a miss or on any backend failure.
	Get(ctx context.Context, staffID int64, date time.Time) (*timeline.Layout, bool)
	Set(ctx context.Context, staffID int64, date time.Time, layout *timeline.Layout)
	Evict(ctx context.Context, staffID int64, date time.Time)
}

// DayReport is everything needed to export one staff member's day
type DayReport struct {
	Staff  *entity.Staff
	Date   time.Time
	Tasks  []*entity.TaskDetail
	Layout *timeline.Layout
}

// TimelineExporter renders a day report as a spreadsheet
type TimelineExporter interface {
	WriteDay(w io.Writer, report *DayReport) error
}
