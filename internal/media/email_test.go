package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stveit/argus/internal/models"
)

// mockSender records transport calls and can be told to fail.
type mockSender struct {
	calls []mailCall
	err   error
}

type mailCall struct {
	subject    string
	body       string
	recipients []string
}

func (m *mockSender) SendMail(ctx context.Context, subject, body string, recipients []string) error {
	m.calls = append(m.calls, mailCall{subject: subject, body: body, recipients: recipients})
	return m.err
}

func emailDestination(address string, synced bool) *models.DestinationConfig {
	return models.NewDestinationConfig("user-1", &models.EmailSettings{
		EmailAddress: address,
		Synced:       synced,
	})
}

func TestEmailValidateSettings(t *testing.T) {
	medium := NewEmailMedium(&mockSender{})

	tests := []struct {
		name     string
		raw      string
		existing []*models.DestinationConfig
		want     string
		wantErr  bool
		wantDup  bool
	}{
		{
			name: "valid address",
			raw:  `{"email_address": "ops@example.com"}`,
			want: "ops@example.com",
		},
		{
			name: "normalized to lowercase",
			raw:  `{"email_address": "Ops@Example.COM"}`,
			want: "ops@example.com",
		},
		{
			name:    "missing address",
			raw:     `{}`,
			wantErr: true,
		},
		{
			name:    "malformed address",
			raw:     `{"email_address": "not-an-email"}`,
			wantErr: true,
		},
		{
			name:     "duplicate case-insensitive",
			raw:      `{"email_address": "OPS@example.com"}`,
			existing: []*models.DestinationConfig{emailDestination("ops@example.com", false)},
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
			es := settings.(*models.EmailSettings)
			if es.EmailAddress != tt.want {
				t.Errorf("address = %q, want %q", es.EmailAddress, tt.want)
			}
		})
	}
}

func TestEmailSend(t *testing.T) {
	incident := models.NewIncident("source-1", "disk full on db-1", map[string]string{"host": "db-1"})
	incident.StartTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("one call for all recipients", func(t *testing.T) {
		sender := &mockSender{}
		medium := NewEmailMedium(sender)

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			emailDestination("a@example.com", true),
			emailDestination("b@example.com", false),
			emailDestination("A@example.com", false), // duplicate of the first
		})

		if result.Outcome != OutcomeSent {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeSent)
		}
		if result.Sent != 2 {
			t.Errorf("sent = %d, want 2", result.Sent)
		}
		if len(sender.calls) != 1 {
			t.Fatalf("transport calls = %d, want 1", len(sender.calls))
		}
		call := sender.calls[0]
		if len(call.recipients) != 2 {
			t.Errorf("recipients = %v, want 2 addresses", call.recipients)
		}
		if call.subject != "[argus] incident: disk full on db-1" {
			t.Errorf("subject = %q", call.subject)
		}
	})

	t.Run("no destinations", func(t *testing.T) {
		sender := &mockSender{}
		medium := NewEmailMedium(sender)

		result := medium.Send(context.Background(), incident, nil)
		if result.Outcome != OutcomeNoDestinations {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeNoDestinations)
		}
		if len(sender.calls) != 0 {
			t.Errorf("transport calls = %d, want 0", len(sender.calls))
		}
	})

	t.Run("transport failure reports every address", func(t *testing.T) {
		sender := &mockSender{err: errors.New("connection refused")}
		medium := NewEmailMedium(sender)

		result := medium.Send(context.Background(), incident, []*models.DestinationConfig{
			emailDestination("a@example.com", false),
			emailDestination("b@example.com", false),
		})

		if result.Outcome != OutcomeTransportUnavailable {
			t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomeTransportUnavailable)
		}
		if len(result.Failed) != 2 {
			t.Errorf("failed = %d, want 2", len(result.Failed))
		}
	})
}
