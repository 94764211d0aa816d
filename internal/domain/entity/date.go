package entity

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DateOf truncates t to its calendar day in t's location, returned at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders d as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateWindow is a contiguous run of calendar days starting at Start.
type DateWindow struct {
	Start time.Time
	Days  int
}

// NewDateWindow returns a window of days starting at start. days must be positive.
func NewDateWindow(start time.Time, days int) (DateWindow, error) {
	if days < 1 {
		return DateWindow{}, fmt.Errorf("window must cover at least one day, got %d", days)
	}
	return DateWindow{Start: DateOf(start), Days: days}, nil
}

// SingleDay is the interactive one-day window.
func SingleDay(day time.Time) DateWindow {
	return DateWindow{Start: DateOf(day), Days: 1}
}

// Dates lists every day in the window in order.
func (w DateWindow) Dates() []time.Time {
	out := make([]time.Time, 0, w.Days)
	for i := 0; i < w.Days; i++ {
		out = append(out, w.Start.AddDate(0, 0, i))
	}
	return out
}

// End is the last day in the window.
func (w DateWindow) End() time.Time {
	return w.Start.AddDate(0, 0, w.Days-1)
}
