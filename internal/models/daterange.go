package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted on input and used on output
const DateLayout = "2006-01-02"

// DateRange is an inclusive interval of calendar dates in UTC
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a YYYY-MM-DD value into a UTC calendar date
func ParseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   field,
			Value:   value,
			Message: "invalid " + field + " format, expected YYYY-MM-DD",
		}
	}
	return d.UTC(), nil
}

// DateOf truncates t to its UTC calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartInstant returns the first second of the range (start 00:00:00)
func (r DateRange) StartInstant() time.Time {
	return DateOf(r.Start)
}

// EndInstant returns the last second of the range (end 23:59:59)
func (r DateRange) EndInstant() time.Time {
	return DateOf(r.End).Add(24*time.Hour - time.Second)
}

// Contains reports whether t falls within [start 00:00:00, end 23:59:59]
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.StartInstant()) && !t.After(r.EndInstant())
}

// String formats the range as "start..end"
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

type dateRangeJSON struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// MarshalJSON encodes both ends as YYYY-MM-DD
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		Start: r.Start.Format(DateLayout),
		End:   r.End.Format(DateLayout),
	})
}

// UnmarshalJSON decodes both ends from YYYY-MM-DD
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseDate("start_date", raw.Start)
	if err != nil {
		return err
	}
	end, err := ParseDate("end_date", raw.End)
	if err != nil {
		return err
	}
	r.Start, r.End = start, end
	return nil
}
