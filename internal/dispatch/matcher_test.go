package dispatch

import (
	"testing"
	"time"

	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/recurrence"
)

func workhoursTimeslot() *models.Timeslot {
	start, _ := models.ParseTimeOfDay("08:00:00")
	end, _ := models.ParseTimeOfDay("16:00:00")
	slot := models.NewTimeslot("user-1", "workhours")
	slot.Recurrences = []models.TimeRecurrence{
		{Days: []models.Day{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday}, Start: start, End: end},
	}
	return slot
}

func incidentAt(t *testing.T, stamp string) *models.Incident {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("parse %q: %v", stamp, err)
	}
	incident := models.NewIncident("src-1", "disk full", map[string]string{"env": "prod"})
	incident.StartTime = ts
	return incident
}

func TestProfileFires(t *testing.T) {
	matcher := NewMatcher(recurrence.New(time.UTC))
	slot := workhoursTimeslot()

	active := models.NewNotificationProfile("user-1", slot.ID)

	inactive := models.NewNotificationProfile("user-1", slot.ID)
	inactive.Active = false

	// 2026-03-16 is a Monday.
	inside := incidentAt(t, "2026-03-16T10:00:00Z")
	outside := incidentAt(t, "2026-03-16T18:00:00Z")
	weekend := incidentAt(t, "2026-03-21T10:00:00Z")

	tests := []struct {
		name     string
		profile  *models.NotificationProfile
		timeslot *models.Timeslot
		incident *models.Incident
		want     bool
	}{
		{"active inside window", active, slot, inside, true},
		{"inactive profile never fires", inactive, slot, inside, false},
		{"outside window", active, slot, outside, false},
		{"weekend outside recurrence days", active, slot, weekend, false},
		{"missing timeslot is skipped", active, nil, inside, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.ProfileFires(tt.profile, tt.timeslot, nil, tt.incident); got != tt.want {
				t.Errorf("ProfileFires() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfileFiresFilterGating(t *testing.T) {
	slot := workhoursTimeslot()
	profile := models.NewNotificationProfile("user-1", slot.ID)
	incident := incidentAt(t, "2026-03-16T10:00:00Z")

	prodFilter := models.NewFilter("user-1", "prod", models.FilterExpr{
		Tags: []models.TagPredicate{{Key: "env", Value: "prod"}},
	})
	stagingFilter := models.NewFilter("user-1", "staging", models.FilterExpr{
		Tags: []models.TagPredicate{{Key: "env", Value: "staging"}},
	})

	ungated := NewMatcher(recurrence.New(time.UTC))
	if !ungated.ProfileFires(profile, slot, []*models.Filter{stagingFilter}, incident) {
		t.Error("without filter gating the filter set must not affect matching")
	}

	gated := NewMatcher(recurrence.New(time.UTC))
	gated.FilterGating = true

	if !gated.ProfileFires(profile, slot, []*models.Filter{prodFilter}, incident) {
		t.Error("gated profile with a matching filter should fire")
	}
	if gated.ProfileFires(profile, slot, []*models.Filter{stagingFilter}, incident) {
		t.Error("gated profile with only non-matching filters should not fire")
	}
	if !gated.ProfileFires(profile, slot, []*models.Filter{stagingFilter, prodFilter}, incident) {
		t.Error("one matching filter out of several is enough")
	}
	if !gated.ProfileFires(profile, slot, nil, incident) {
		t.Error("gated profile without filters fires on time window alone")
	}
}
