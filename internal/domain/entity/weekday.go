package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// WeekdayMask is a set of weekday indices, 0=Sunday through 6=Saturday.
type WeekdayMask uint8

// AllWeekdays contains every day of the week.
const AllWeekdays WeekdayMask = 0x7f

// NewWeekdayMask builds a mask from weekday indices.
func NewWeekdayMask(days ...int) (WeekdayMask, error) {
	var m WeekdayMask
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0-6", d)
		}
		m |= 1 << uint(d)
	}
	return m, nil
}

// MustWeekdays is NewWeekdayMask that panics on out-of-range input.
func MustWeekdays(days ...int) WeekdayMask {
	m, err := NewWeekdayMask(days...)
	if err != nil {
		panic(err)
	}
	return m
}

// Contains reports whether the weekday is in the mask.
func (m WeekdayMask) Contains(day time.Weekday) bool {
	return m&(1<<uint(day)) != 0
}

// IsEmpty reports whether no weekday is set.
func (m WeekdayMask) IsEmpty() bool {
	return m&AllWeekdays == 0
}

// Days returns the weekday indices in ascending order.
func (m WeekdayMask) Days() []int {
	days := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if m&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON encodes the mask as a JSON array such as [1,3,5].
func (m WeekdayMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Days())
}

// UnmarshalJSON accepts arrays of numbers or numeric strings.
func (m *WeekdayMask) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("routine days must be an array: %w", err)
	}

	days := make([]int, 0, len(raw))
	for _, r := range raw {
		var n int
		if err := json.Unmarshal(r, &n); err == nil {
			days = append(days, n)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return fmt.Errorf("invalid weekday %s", string(r))
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid weekday %q", s)
		}
		days = append(days, n)
	}

	sort.Ints(days)
	parsed, err := NewWeekdayMask(days...)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
