package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/officesync/timeline/internal/domain/entity"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullClock(c entity.ClockTime) sql.NullString {
	if !c.Valid() {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

// clockFrom parses a stored time; unparseable values become InvalidClock so
// one bad row never hides the rest of a day.
func clockFrom(s sql.NullString) entity.ClockTime {
	if !s.Valid {
		return entity.InvalidClock
	}
	c, err := entity.ParseClockTime(s.String)
	if err != nil {
		return entity.InvalidClock
	}
	return c
}

func nullDays(m *entity.WeekdayMask) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func daysFrom(s sql.NullString) (*entity.WeekdayMask, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m entity.WeekdayMask
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
