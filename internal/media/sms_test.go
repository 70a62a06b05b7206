package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stveit/argus/internal/models"
)

func smsDestination(number string) *models.DestinationConfig {
	return models.NewDestinationConfig("user-1", &models.SMSSettings{PhoneNumber: number})
}

func TestSMSValidateSettings(t *testing.T) {
	medium := NewSMSMedium(&mockSender{}, "gateway@example.com")

	tests := []struct {
		name     string
		raw      string
		existing []*models.DestinationConfig
		want     string
		wantErr  bool
		wantDup  bool
	}{
		{
			name: "valid e164",
			raw:  `{"phone_number": "+4747474700"}`,
			want: "+4747474700",
		},
		{
			name: "normalized with spaces",
			raw:  `{"phone_number": "+47 47 47 47 00"}`,
			want: "+4747474700",
		},
		{
			name:    "missing country code",
			raw:     `{"phone_number": "47474700"}`,
			wantErr: true,
		},
		{
			name:    "missing number",
			raw:     `{}`,
			wantErr: true,
		},
		{
			name:    "not a number",
			raw:     `{"phone_number": "+47abc"}`,
			wantErr: true,
		},
		{
			name:     "duplicate after normalization",
			raw:      `{"phone_number": "+47 4747 4700"}`,
			existing: []*models.DestinationConfig{smsDestination("+4747474700")},
			wantDup:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := medium.ValidateSettings([]byte(tt.raw), tt.existing)
			if tt.wantDup {
				if !errors.Is(err, models.ErrDuplicateDestination) {
					t.Fatalf("expected duplicate error, got %v", err)
				}
				return
			}
			if tt.wantErr {
				if !models.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate settings: %v", err)
			}
			ss := settings.(*models.SMSSettings)
			if ss.PhoneNumber != tt.want {
				t.Errorf("number = %q, want %q", ss.PhoneNumber, tt.want)
			}
		})
	}
}

func TestSMSSend(t *testing.T) {
	incident := models.NewIncident("source-1", "disk full on db-1", nil)

	t.Run("one gateway call per number", func(t *testing.T) {
		sender := &mockSender{}
		medium := NewSMSMedium(sender, "gateway@example.com")

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			smsDestination("+4747474700"),
			smsDestination("+4747474701"),
		})

		if result.Outcome != OutcomeSent {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeSent)
		}
		if result.Sent != 2 {
			t.Errorf("sent = %d, want 2", result.Sent)
		}
		if len(sender.calls) != 2 {
			t.Fatalf("transport calls = %d, want 2", len(sender.calls))
		}
		if sender.calls[0].subject != "sms +4747474700" {
			t.Errorf("subject = %q, want number embedded", sender.calls[0].subject)
		}
		if sender.calls[0].body != incident.Description {
			t.Errorf("body = %q, want incident description", sender.calls[0].body)
		}
		if len(sender.calls[0].recipients) != 1 || sender.calls[0].recipients[0] != "gateway@example.com" {
			t.Errorf("recipients = %v, want just the gateway", sender.calls[0].recipients)
		}
	})

	t.Run("missing gateway degrades without transport calls", func(t *testing.T) {
		sender := &mockSender{}
		medium := NewSMSMedium(sender, "")

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			smsDestination("+4747474700"),
		})

		if result.Outcome != OutcomeTransportUnavailable {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeTransportUnavailable)
		}
		if len(sender.calls) != 0 {
			t.Errorf("transport calls = %d, want 0", len(sender.calls))
		}
		if len(result.Failed) != 1 {
			t.Errorf("failed = %d, want 1", len(result.Failed))
		}
	})

	t.Run("gateway hot swap", func(t *testing.T) {
		sender := &mockSender{}
		medium := NewSMSMedium(sender, "")
		medium.SetGatewayAddress("new-gateway@example.com")

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			smsDestination("+4747474700"),
		})
		if result.Outcome != OutcomeSent {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeSent)
		}
		if sender.calls[0].recipients[0] != "new-gateway@example.com" {
			t.Errorf("recipients = %v, want updated gateway", sender.calls[0].recipients)
		}
	})

	t.Run("all sends failing is transport unavailable", func(t *testing.T) {
		sender := &mockSender{err: errors.New("gateway rejected")}
		medium := NewSMSMedium(sender, "gateway@example.com")

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			smsDestination("+4747474700"),
		})
		if result.Outcome != OutcomeTransportUnavailable {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeTransportUnavailable)
		}
	})
}

func TestRegistryCatalog(t *testing.T) {
	sender := &mockSender{}
	registry := NewRegistry(NewEmailMedium(sender), NewSMSMedium(sender, "gw@example.com"))

	catalog := registry.Catalog()
	if len(catalog) != 2 {
		t.Fatalf("catalog size = %d, want 2", len(catalog))
	}
	// Slug order is sorted.
	if catalog[0].Slug != models.MediaEmail || catalog[1].Slug != models.MediaSMS {
		t.Errorf("catalog order = %v", catalog)
	}

	if _, err := registry.ValidateSettings("carrier-pigeon", []byte(`{}`), nil); !models.IsValidationError(err) {
		t.Errorf("unknown slug: expected validation error, got %v", err)
	}
}
