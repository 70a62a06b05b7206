package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nyaruka/phonenumbers"

	"github.com/stveit/argus/internal/models"
)

// SMSMedium delivers SMS through an email-to-SMS gateway. The gateway has
// an email interface: the subject must contain the recipient's phone
// number and the body the message text, so send fans in to one transport
// call per phone number with the gateway address as the sole physical
// recipient.
type SMSMedium struct {
	sender MailSender

	mu      sync.RWMutex
	gateway string
}

// NewSMSMedium creates the SMS medium. An empty gateway address degrades
// send to a logged no-op; it can be set later via SetGatewayAddress.
func NewSMSMedium(sender MailSender, gatewayAddress string) *SMSMedium {
	return &SMSMedium{sender: sender, gateway: gatewayAddress}
}

// Slug returns "sms".
func (m *SMSMedium) Slug() string { return models.MediaSMS }

// Name returns the display name.
func (m *SMSMedium) Name() string { return "SMS" }

// GatewayAddress returns the configured gateway address.
func (m *SMSMedium) GatewayAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gateway
}

// SetGatewayAddress updates the gateway address at runtime, e.g. on a
// configuration reload.
func (m *SMSMedium) SetGatewayAddress(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateway = address
}

// ValidateSettings validates an SMS settings payload. The phone number
// must carry a country code and is normalized to E.164.
func (m *SMSMedium) ValidateSettings(raw json.RawMessage, existing []*models.DestinationConfig) (models.Settings, error) {
	var settings models.SMSSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, &models.ValidationError{Field: "settings", Reason: "malformed sms settings"}
	}
	if settings.PhoneNumber == "" {
		return nil, &models.ValidationError{Field: "phone_number", Reason: "phone number is required"}
	}

	number, err := phonenumbers.Parse(settings.PhoneNumber, "")
	if err != nil {
		return nil, &models.ValidationError{
			Field:  "phone_number",
			Reason: fmt.Sprintf("invalid phone number %q, country code required", settings.PhoneNumber),
		}
	}
	if !phonenumbers.IsValidNumber(number) {
		return nil, &models.ValidationError{
			Field:  "phone_number",
			Reason: fmt.Sprintf("invalid phone number %q", settings.PhoneNumber),
		}
	}
	settings.PhoneNumber = phonenumbers.Format(number, phonenumbers.E164)

	if m.HasDuplicate(existing, &settings) {
		return nil, fmt.Errorf("phone number %s: %w", settings.PhoneNumber, models.ErrDuplicateDestination)
	}

	return &settings, nil
}

// Label returns the phone number represented by this SMS destination.
func (m *SMSMedium) Label(destination *models.DestinationConfig) string {
	if s := destination.SMSSettings(); s != nil {
		return s.PhoneNumber
	}
	return ""
}

// HasDuplicate reports whether an SMS destination with the same phone
// number already exists in the given set. Numbers are stored normalized,
// so equality is exact.
func (m *SMSMedium) HasDuplicate(existing []*models.DestinationConfig, settings models.Settings) bool {
	ss, ok := settings.(*models.SMSSettings)
	if !ok {
		return false
	}
	for _, d := range existing {
		if s := d.SMSSettings(); s != nil && s.PhoneNumber == ss.PhoneNumber {
			return true
		}
	}
	return false
}

// RelevantAddresses returns the phone numbers of this medium's
// destinations, deduplicated.
func (m *SMSMedium) RelevantAddresses(destinations []*models.DestinationConfig) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, d := range destinations {
		if d.MediaSlug != models.MediaSMS {
			continue
		}
		s := d.SMSSettings()
		if s == nil || s.PhoneNumber == "" {
			continue
		}
		if seen[s.PhoneNumber] {
			continue
		}
		seen[s.PhoneNumber] = true
		numbers = append(numbers, s.PhoneNumber)
	}
	return numbers
}

// Send sends one gateway mail per phone number, subject "sms <number>",
// body equal to the incident description. A missing gateway address is
// logged and reported as transport-unavailable, never raised, so other
// media still proceed.
func (m *SMSMedium) Send(ctx context.Context, incident *models.Incident, destinations []*models.DestinationConfig) SendResult {
	numbers := m.RelevantAddresses(destinations)
	if len(numbers) == 0 {
		return SendResult{Outcome: OutcomeNoDestinations}
	}

	gateway := m.GatewayAddress()
	if gateway == "" {
		log.Printf("sms: gateway address is not set, cannot dispatch SMS notifications")
		result := SendResult{Outcome: OutcomeTransportUnavailable}
		for _, number := range numbers {
			result.Failed = append(result.Failed, AddressError{Address: number, Reason: "sms gateway address not configured"})
		}
		return result
	}

	var result SendResult
	for _, number := range numbers {
		subject := fmt.Sprintf("sms %s", number)
		if err := m.sender.SendMail(ctx, subject, incident.Description, []string{gateway}); err != nil {
			log.Printf("sms: send for %s failed: %v", number, err)
			result.Failed = append(result.Failed, AddressError{Address: number, Reason: err.Error()})
			continue
		}
		result.Sent++
	}

	if result.Sent == 0 {
		result.Outcome = OutcomeTransportUnavailable
	} else {
		result.Outcome = OutcomeSent
	}
	return result
}
