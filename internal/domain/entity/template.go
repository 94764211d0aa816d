package entity

import "time"

// RoutineTemplate describes a task every member of a department gets on
// matching weekdays.
type RoutineTemplate struct {
	ID                int64       `json:"id"`
	Department        string      `json:"department"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	RoutineDays       WeekdayMask `json:"routine_days"`
	DefaultStartTime  ClockTime   `json:"default_start_time"`
	DurationHours     float64     `json:"duration_hours"`
	ChecklistTemplate []string    `json:"checklist_template"`
	StartDate         *time.Time  `json:"-"`
	IsActive          bool        `json:"is_active"`
	CreatedBy         *int64      `json:"created_by,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// AppliesOn reports whether the template produces a task on date.
func (t *RoutineTemplate) AppliesOn(date time.Time) bool {
	if !t.IsActive || !t.RoutineDays.Contains(date.Weekday()) {
		return false
	}
	return t.StartDate == nil || !t.StartDate.After(date)
}

// EndTime is the default start shifted by the duration.
func (t *RoutineTemplate) EndTime() ClockTime {
	return t.DefaultStartTime.AddHours(t.DurationHours)
}
