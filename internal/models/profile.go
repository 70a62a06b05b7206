package models

import "time"

// NotificationProfile binds a timeslot to a set of filters and
// destinations, with an active switch. A timeslot has at most one
// profile; the profile is keyed by its timeslot in storage, so binding
// it to a different timeslot re-keys the row while the ID exposed to
// clients stays stable.
type NotificationProfile struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TimeslotID     string    `json:"timeslot"`
	FilterIDs      []string  `json:"filters"`
	DestinationIDs []string  `json:"destinations"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewNotificationProfile creates an active profile bound to the given
// timeslot.
func NewNotificationProfile(userID, timeslotID string) *NotificationProfile {
	now := time.Now()
	return &NotificationProfile{
		ID:         newID(),
		UserID:     userID,
		TimeslotID: timeslotID,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the profile invariants. A profile without a timeslot
// indicates a data-integrity bug upstream.
func (p *NotificationProfile) Validate() error {
	if p.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "owner is required"}
	}
	if p.TimeslotID == "" {
		return &ValidationError{Field: "timeslot", Reason: "timeslot is required"}
	}
	return nil
}
