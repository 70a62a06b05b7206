// Package models contains the core data structures for Argus.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Day is an ISO-8601 weekday (Monday=1 .. Sunday=7).
// The numeric encoding gives a canonical sort order independent of locale.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// String returns the English weekday name.
func (d Day) String() string {
	switch d {
	case Monday:
		return "Monday"
	case Tuesday:
		return "Tuesday"
	case Wednesday:
		return "Wednesday"
	case Thursday:
		return "Thursday"
	case Friday:
		return "Friday"
	case Saturday:
		return "Saturday"
	case Sunday:
		return "Sunday"
	default:
		return fmt.Sprintf("Day(%d)", int(d))
	}
}

// Valid reports whether d is within Monday..Sunday.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// AllDays returns every weekday in canonical order.
func AllDays() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// ISOWeekday converts a time.Weekday (Sunday=0) to Day (Monday=1..Sunday=7).
func ISOWeekday(wd time.Weekday) Day {
	if wd == time.Sunday {
		return Sunday
	}
	return Day(wd)
}

// TimeOfDay is a local wall-clock time of day, stored as the offset
// from midnight. It carries no date or timezone.
type TimeOfDay time.Duration

const (
	// DayStart is the earliest representable time of day (00:00:00).
	DayStart TimeOfDay = 0
	// DayEnd is the latest representable time of day (23:59:59.999999999).
	DayEnd TimeOfDay = TimeOfDay(24*time.Hour - time.Nanosecond)
)

// ParseTimeOfDay parses "15:04:05" (seconds optional, fraction allowed).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var layout string
	switch {
	case len(s) == len("15:04"):
		layout = "15:04"
	default:
		layout = "15:04:05.999999999"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return TimeOfDay(d), nil
}

// TimeOfDayOf extracts the wall-clock time of day from t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

// String formats the time of day as "15:04:05" with a fractional part
// only when one is present.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	if d == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, d)
}

// MarshalJSON encodes the time of day as its string form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a "15:04:05"-style string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRecurrence is one weekly recurring window: a set of weekdays plus a
// start and end wall-clock time, inclusive on both ends.
type TimeRecurrence struct {
	ID         string    `json:"-"`
	TimeslotID string    `json:"-"`
	Days       []Day     `json:"days"`
	Start      TimeOfDay `json:"start"`
	End        TimeOfDay `json:"end"`
}

// AllDay reports whether the recurrence spans the whole day. The flag is
// derived from the sentinel start/end values, never stored separately.
func (r *TimeRecurrence) AllDay() bool {
	return r.Start == DayStart && r.End == DayEnd
}

// HasDay reports whether the recurrence covers the given weekday.
func (r *TimeRecurrence) HasDay(day Day) bool {
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}

// NormalizeDays sorts the day set canonically and removes duplicates.
func (r *TimeRecurrence) NormalizeDays() {
	sort.Slice(r.Days, func(i, j int) bool { return r.Days[i] < r.Days[j] })
	out := r.Days[:0]
	for i, d := range r.Days {
		if i > 0 && d == r.Days[i-1] {
			continue
		}
		out = append(out, d)
	}
	r.Days = out
}

// Validate checks the recurrence invariants and normalizes the day set.
func (r *TimeRecurrence) Validate() error {
	if len(r.Days) == 0 {
		return &ValidationError{Field: "days", Reason: "at least one day is required"}
	}
	for _, d := range r.Days {
		if !d.Valid() {
			return &ValidationError{Field: "days", Reason: fmt.Sprintf("invalid day %d", int(d))}
		}
	}
	if r.Start < DayStart || r.Start > DayEnd {
		return &ValidationError{Field: "start", Reason: "out of range"}
	}
	if r.End < DayStart || r.End > DayEnd {
		return &ValidationError{Field: "end", Reason: "out of range"}
	}
	if r.Start >= r.End {
		return &ValidationError{Field: "start", Reason: "'start' must be before 'end'"}
	}
	r.NormalizeDays()
	return nil
}

// Timeslot is a named set of recurring weekly windows owned by one user.
// The name is unique per user. Deleting a timeslot cascades to its
// recurrences and to the notification profile bound to it.
type Timeslot struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Recurrences []TimeRecurrence `json:"time_recurrences"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewTimeslot creates a timeslot with initialized ID and timestamps.
func NewTimeslot(userID, name string) *Timeslot {
	now := time.Now()
	return &Timeslot{
		ID:        newID(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the timeslot and all of its recurrences.
func (s *Timeslot) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if s.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "owner is required"}
	}
	for i := range s.Recurrences {
		if err := s.Recurrences[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
