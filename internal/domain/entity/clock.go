package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ClockTime is a time of day stored as seconds since midnight.
type ClockTime int

// InvalidClock marks a time that could not be parsed from storage.
const InvalidClock ClockTime = -1

// EndOfDay is the latest representable time of day.
const EndOfDay ClockTime = 23*3600 + 59*60 + 59

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?$`)

// ParseClockTime accepts "H:MM", "HH:MM" and "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return InvalidClock, fmt.Errorf("invalid time of day %q, expected HH:MM or HH:MM:SS", s)
	}

	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}

	return ClockTime(h*3600 + min*60 + sec), nil
}

// MustClock parses s and panics on error. Intended for constants and tests.
func MustClock(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether c is inside a single day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

// Minutes returns the minutes since midnight, including fractional seconds.
func (c ClockTime) Minutes() float64 {
	return float64(c) / 60
}

// AddHours returns c shifted by hours, clamped to the same day.
func (c ClockTime) AddHours(hours float64) ClockTime {
	next := int(c) + int(math.Round(hours*3600))
	if next > int(EndOfDay) {
		return EndOfDay
	}
	if next < 0 {
		return 0
	}
	return ClockTime(next)
}

// HoursUntil returns the span from c to end in hours, rounded to one decimal.
func (c ClockTime) HoursUntil(end ClockTime) float64 {
	return math.Round(float64(end-c)/3600*10) / 10
}

// String formats c as HH:MM:SS.
func (c ClockTime) String() string {
	if !c.Valid() {
		return ""
	}
	s := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// MarshalJSON encodes c as "HH:MM:SS" or null when invalid.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:MM" or "HH:MM:SS".
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
