// Package dispatch matches incoming incidents against notification
// profiles and sends notifications through the media registry.
package dispatch

import (
	"log"

	"github.com/stveit/argus/internal/filtering"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/recurrence"
)

// Matcher decides whether a notification profile should fire for an
// incident. It is a pure predicate; all state lives in the arguments.
type Matcher struct {
	recurrence *recurrence.Engine

	// FilterGating additionally requires at least one of the profile's
	// filters to match the incident. Off by default: profiles are gated
	// on active state and time window only, and filter gating is the
	// documented extension point.
	FilterGating bool
}

// NewMatcher creates a matcher evaluating time windows with the given
// recurrence engine.
func NewMatcher(engine *recurrence.Engine) *Matcher {
	return &Matcher{recurrence: engine}
}

// ProfileFires reports whether the profile should fire for the incident.
// timeslot is the profile's bound timeslot and filters its filter set;
// a profile without a timeslot indicates a data-integrity bug upstream
// and is logged and skipped rather than dispatched.
func (m *Matcher) ProfileFires(profile *models.NotificationProfile, timeslot *models.Timeslot, filters []*models.Filter, incident *models.Incident) bool {
	if !profile.Active {
		return false
	}

	if timeslot == nil {
		log.Printf("dispatch: profile %s has no timeslot, data integrity bug upstream, skipping", profile.ID)
		return false
	}

	if !m.recurrence.TimeslotCovers(timeslot, incident.StartTime) {
		return false
	}

	if m.FilterGating && len(filters) > 0 {
		matched := false
		for _, filter := range filters {
			if filtering.Matches(filter.Expr, incident) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}
