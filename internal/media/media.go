// Package media implements the notification channel catalog. Each medium
// (email, SMS, ...) provides validation, labeling, duplicate detection,
// address resolution and sending for its destination type. Media register
// into a Registry built once at startup; the registry is read-only after
// initialization.
package media

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/stveit/argus/internal/models"
)

// Medium is one notification channel implementation.
type Medium interface {
	// Slug returns the catalog slug (e.g. "email", "sms").
	Slug() string
	// Name returns the display name.
	Name() string
	// ValidateSettings validates a raw settings payload and returns the
	// typed settings. existing is the owning user's current destination
	// set, used for medium-defined duplicate detection; an equivalent
	// destination fails with ErrDuplicateDestination.
	ValidateSettings(raw json.RawMessage, existing []*models.DestinationConfig) (models.Settings, error)
	// Label returns the human-readable address of a destination.
	Label(destination *models.DestinationConfig) string
	// HasDuplicate reports whether the destination set already contains
	// an equivalent of the given settings.
	HasDuplicate(existing []*models.DestinationConfig, settings models.Settings) bool
	// RelevantAddresses filters the destination set down to this
	// medium's addressable targets, deduplicated.
	RelevantAddresses(destinations []*models.DestinationConfig) []string
	// Send dispatches one message about the incident to the given
	// destinations. Transport failures are folded into the result and
	// never returned as errors.
	Send(ctx context.Context, incident *models.Incident, destinations []*models.DestinationConfig) SendResult
}

// Outcome is the tri-state result of a medium's send operation.
type Outcome string

const (
	// OutcomeNoDestinations means the medium had nothing to send to.
	OutcomeNoDestinations Outcome = "no_destinations"
	// OutcomeSent means at least one message was handed to the transport.
	OutcomeSent Outcome = "sent"
	// OutcomeTransportUnavailable means the channel is not configured or
	// every transport call failed.
	OutcomeTransportUnavailable Outcome = "transport_unavailable"
)

// AddressError records a per-recipient transport failure.
type AddressError struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// SendResult aggregates the outcome of one medium's send operation,
// including partial per-recipient failures.
type SendResult struct {
	Outcome Outcome        `json:"outcome"`
	Sent    int            `json:"sent"`
	Failed  []AddressError `json:"failed,omitempty"`
}

// Registry is the process-wide slug-to-medium mapping. It is populated
// once at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	media map[string]Medium
}

// NewRegistry builds a registry from the given media.
func NewRegistry(media ...Medium) *Registry {
	r := &Registry{media: make(map[string]Medium, len(media))}
	for _, m := range media {
		r.media[m.Slug()] = m
	}
	return r
}

// Get returns the medium for a slug.
func (r *Registry) Get(slug string) (Medium, bool) {
	m, ok := r.media[slug]
	return m, ok
}

// Slugs returns all registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, 0, len(r.media))
	for slug := range r.media {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Catalog returns the static media catalog entries in slug order.
func (r *Registry) Catalog() []models.Media {
	catalog := make([]models.Media, 0, len(r.media))
	for _, slug := range r.Slugs() {
		m := r.media[slug]
		catalog = append(catalog, models.Media{Slug: m.Slug(), Name: m.Name()})
	}
	return catalog
}

// ValidateSettings looks up the medium for the slug and validates the
// payload against it.
func (r *Registry) ValidateSettings(slug string, raw json.RawMessage, existing []*models.DestinationConfig) (models.Settings, error) {
	m, ok := r.Get(slug)
	if !ok {
		return nil, &models.ValidationError{Field: "media", Reason: "unknown media slug " + slug}
	}
	return m.ValidateSettings(raw, existing)
}
