// Package recurrence evaluates recurring weekly time windows. It answers
// whether a timestamp falls inside any of a timeslot's recurrences, in a
// configured local timezone.
package recurrence

import (
	"time"

	"github.com/stveit/argus/internal/models"
)

// Engine matches timestamps against time recurrences. It holds the
// timezone in which wall-clock comparisons are made.
type Engine struct {
	loc *time.Location
}

// New creates an engine evaluating in the given location. A nil location
// falls back to the process-local timezone.
func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Location returns the engine's timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Matches reports whether the timestamp falls inside any of the given
// recurrences. The timestamp is converted to the engine's timezone; a
// recurrence matches when its day set contains the local ISO weekday and
// start <= time-of-day <= end, inclusive on both ends. An empty
// recurrence set never matches.
func (e *Engine) Matches(recurrences []models.TimeRecurrence, t time.Time) bool {
	local := t.In(e.loc)
	day := models.ISOWeekday(local.Weekday())
	tod := models.TimeOfDayOf(local)

	for i := range recurrences {
		r := &recurrences[i]
		if r.HasDay(day) && r.Start <= tod && tod <= r.End {
			return true
		}
	}
	return false
}

// TimeslotCovers reports whether the timestamp falls inside any
// recurrence of the timeslot.
func (e *Engine) TimeslotCovers(slot *models.Timeslot, t time.Time) bool {
	return e.Matches(slot.Recurrences, t)
}
