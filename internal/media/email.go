package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/stveit/argus/internal/models"
)

// EmailMedium sends incident notifications by email. Duplicate detection
// compares normalized (lowercased) addresses.
type EmailMedium struct {
	sender MailSender
}

// NewEmailMedium creates the email medium on top of a mail transport.
func NewEmailMedium(sender MailSender) *EmailMedium {
	return &EmailMedium{sender: sender}
}

// Slug returns "email".
func (m *EmailMedium) Slug() string { return models.MediaEmail }

// Name returns the display name.
func (m *EmailMedium) Name() string { return "Email" }

// ValidateSettings validates an email settings payload.
func (m *EmailMedium) ValidateSettings(raw json.RawMessage, existing []*models.DestinationConfig) (models.Settings, error) {
	var settings models.EmailSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, &models.ValidationError{Field: "settings", Reason: "malformed email settings"}
	}
	if settings.EmailAddress == "" {
		return nil, &models.ValidationError{Field: "email_address", Reason: "email address is required"}
	}

	parsed, err := mail.ParseAddress(settings.EmailAddress)
	if err != nil {
		return nil, &models.ValidationError{
			Field:  "email_address",
			Reason: fmt.Sprintf("invalid email address %q", settings.EmailAddress),
		}
	}
	settings.EmailAddress = strings.ToLower(parsed.Address)

	if m.HasDuplicate(existing, &settings) {
		return nil, fmt.Errorf("email address %s: %w", settings.EmailAddress, models.ErrDuplicateDestination)
	}

	return &settings, nil
}

// Label returns the address represented by this email destination.
func (m *EmailMedium) Label(destination *models.DestinationConfig) string {
	if s := destination.EmailSettings(); s != nil {
		return s.EmailAddress
	}
	return ""
}

// HasDuplicate reports whether an email destination with the same address
// already exists in the given set.
func (m *EmailMedium) HasDuplicate(existing []*models.DestinationConfig, settings models.Settings) bool {
	es, ok := settings.(*models.EmailSettings)
	if !ok {
		return false
	}
	address := strings.ToLower(es.EmailAddress)
	for _, d := range existing {
		if s := d.EmailSettings(); s != nil && strings.ToLower(s.EmailAddress) == address {
			return true
		}
	}
	return false
}

// RelevantAddresses returns the email addresses of this medium's
// destinations, deduplicated case-insensitively.
func (m *EmailMedium) RelevantAddresses(destinations []*models.DestinationConfig) []string {
	seen := make(map[string]bool)
	var addresses []string
	for _, d := range destinations {
		if d.MediaSlug != models.MediaEmail {
			continue
		}
		s := d.EmailSettings()
		if s == nil || s.EmailAddress == "" {
			continue
		}
		key := strings.ToLower(s.EmailAddress)
		if seen[key] {
			continue
		}
		seen[key] = true
		addresses = append(addresses, s.EmailAddress)
	}
	return addresses
}

// Send emails the incident to all relevant addresses in one transport
// call. Transport failures are folded into the result.
func (m *EmailMedium) Send(ctx context.Context, incident *models.Incident, destinations []*models.DestinationConfig) SendResult {
	addresses := m.RelevantAddresses(destinations)
	if len(addresses) == 0 {
		return SendResult{Outcome: OutcomeNoDestinations}
	}

	subject := fmt.Sprintf("[argus] incident: %s", incident.Description)
	body := emailBody(incident)

	if err := m.sender.SendMail(ctx, subject, body, addresses); err != nil {
		log.Printf("email: send to %d recipients failed: %v", len(addresses), err)
		result := SendResult{Outcome: OutcomeTransportUnavailable}
		for _, address := range addresses {
			result.Failed = append(result.Failed, AddressError{Address: address, Reason: err.Error()})
		}
		return result
	}

	return SendResult{Outcome: OutcomeSent, Sent: len(addresses)}
}

// emailBody renders the plain-text notification body.
func emailBody(incident *models.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", incident.Description)
	fmt.Fprintf(&b, "Source: %s\n", incident.SourceSystemID)
	fmt.Fprintf(&b, "Start time: %s\n", incident.StartTime.Format("2006-01-02 15:04:05 MST"))
	for key, value := range incident.Tags {
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	return b.String()
}
