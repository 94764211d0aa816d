package entity

import (
	"time"

	"github.com/officesync/timeline/internal/domain/workflow"
)

// Task is one dated unit of work on a staff member's timeline.
type Task struct {
	ID                 int64          `json:"id"`
	StaffID            int64          `json:"staff_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Category           Category       `json:"category"`
	Status             workflow.State `json:"status"`
	TaskDate           time.Time      `json:"-"`
	StartTime          ClockTime      `json:"start_time"`
	EndTime            ClockTime      `json:"end_time"`
	IsRoutine          bool           `json:"is_routine"`
	RoutineDays        *WeekdayMask   `json:"routine_days,omitempty"`
	AttachmentRequired bool           `json:"attachment_required"`
	CreatedBy          *int64         `json:"created_by,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Date returns the task date as YYYY-MM-DD.
func (t *Task) Date() string {
	return FormatDate(t.TaskDate)
}

// RepeatsOn reports whether a personal routine applies on the given day.
func (t *Task) RepeatsOn(day time.Weekday) bool {
	return t.IsRoutine && t.RoutineDays != nil && t.RoutineDays.Contains(day)
}

// ChecklistItem is one step of a task. CompletedAt is set exactly when IsDone.
type ChecklistItem struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	Text        string     `json:"text"`
	SortOrder   int        `json:"sort_order"`
	IsDone      bool       `json:"is_done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SetDone flips the item and keeps CompletedAt in step.
func (c *ChecklistItem) SetDone(done bool, at time.Time) {
	c.IsDone = done
	if done {
		c.CompletedAt = &at
	} else {
		c.CompletedAt = nil
	}
}

// Attachment is evidence linked to a task. Only the count matters to the completion gate.
type Attachment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	UploadedBy *int64    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Mention links a user to a task; they are told once when it completes.
type Mention struct {
	ID                 int64 `json:"id"`
	TaskID             int64 `json:"task_id"`
	UserID             int64 `json:"user_id"`
	NotifiedOnComplete bool  `json:"notified_on_complete"`
}

// ChecklistProgress summarizes checklist completion.
type ChecklistProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Progress counts done items.
func Progress(items []*ChecklistItem) ChecklistProgress {
	p := ChecklistProgress{Total: len(items)}
	for _, it := range items {
		if it.IsDone {
			p.Done++
		}
	}
	return p
}

// TaskDetail is a task with its checklist and attachment count, as listed on a day view.
type TaskDetail struct {
	*Task
	Date        string            `json:"task_date"`
	Checklist   []*ChecklistItem  `json:"checklist"`
	Progress    ChecklistProgress `json:"progress"`
	Attachments int               `json:"attachment_count"`
}
