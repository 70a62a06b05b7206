package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Media slugs for the supported channel types.
const (
	MediaEmail = "email"
	MediaSMS   = "sms"
)

// Media is one entry of the static, shared channel catalog.
type Media struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Settings is the media-type-specific settings payload of a destination.
// Each medium has its own strongly-typed variant; the union is keyed by
// the media slug.
type Settings interface {
	MediaSlug() string
}

// EmailSettings configures an email destination. A synced destination
// mirrors the owning user's profile email address and is maintained by
// the account lifecycle hooks, not by the user.
type EmailSettings struct {
	EmailAddress string `json:"email_address"`
	Synced       bool   `json:"synced"`
}

// MediaSlug implements Settings.
func (*EmailSettings) MediaSlug() string { return MediaEmail }

// SMSSettings configures an SMS destination. The phone number is stored
// in normalized E.164 form.
type SMSSettings struct {
	PhoneNumber string `json:"phone_number"`
}

// MediaSlug implements Settings.
func (*SMSSettings) MediaSlug() string { return MediaSMS }

// DecodeSettings decodes a raw settings payload into the variant for the
// given media slug.
func DecodeSettings(slug string, raw []byte) (Settings, error) {
	var settings Settings
	switch slug {
	case MediaEmail:
		settings = &EmailSettings{}
	case MediaSMS:
		settings = &SMSSettings{}
	default:
		return nil, fmt.Errorf("unknown media slug %q", slug)
	}
	if err := json.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("decode %s settings: %w", slug, err)
	}
	return settings, nil
}

// EncodeSettings serializes a settings variant for storage.
func EncodeSettings(settings Settings) ([]byte, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode %s settings: %w", settings.MediaSlug(), err)
	}
	return data, nil
}

// DestinationConfig is a user's configured delivery target for one medium.
type DestinationConfig struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MediaSlug string    `json:"media"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDestinationConfig creates a destination with initialized ID and
// timestamps. Settings must already have passed the medium's validation.
func NewDestinationConfig(userID string, settings Settings) *DestinationConfig {
	now := time.Now()
	return &DestinationConfig{
		ID:        newID(),
		UserID:    userID,
		MediaSlug: settings.MediaSlug(),
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EmailSettings returns the email variant, or nil for other media.
func (d *DestinationConfig) EmailSettings() *EmailSettings {
	s, _ := d.Settings.(*EmailSettings)
	return s
}

// SMSSettings returns the SMS variant, or nil for other media.
func (d *DestinationConfig) SMSSettings() *SMSSettings {
	s, _ := d.Settings.(*SMSSettings)
	return s
}
