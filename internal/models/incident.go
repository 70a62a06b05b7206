package models

import "time"

// Incident is an alert received from an external monitoring source. The
// notification core consumes incidents read-only; they are persisted so
// filter previews can run against a pool of real incidents.
type Incident struct {
	ID             string            `json:"id"`
	Description    string            `json:"description"`
	SourceSystemID string            `json:"source"`
	Tags           map[string]string `json:"tags,omitempty"`
	StartTime      time.Time         `json:"start_time"`
}

// NewIncident creates an incident with an initialized ID. A zero start
// time is set to now.
func NewIncident(sourceSystemID, description string, tags map[string]string) *Incident {
	return &Incident{
		ID:             newID(),
		Description:    description,
		SourceSystemID: sourceSystemID,
		Tags:           tags,
		StartTime:      time.Now(),
	}
}

// Tag returns the value for a tag key, and whether it is present.
func (i *Incident) Tag(key string) (string, bool) {
	v, ok := i.Tags[key]
	return v, ok
}
