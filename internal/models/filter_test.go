package models

import (
	"encoding/json"
	"testing"
)

func TestParseTagPredicate(t *testing.T) {
	tests := []struct {
		input     string
		wantKey   string
		wantValue string
		wantErr   bool
	}{
		{"host=db-1", "host", "db-1", false},
		{"url=https://example.com?a=b", "url", "https://example.com?a=b", false},
		{"empty_value=", "empty_value", "", false},
		{"missing-separator", "", "", true},
		{"=value", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			pred, err := ParseTagPredicate(tt.input)
			if tt.wantErr {
				if !IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if pred.Key != tt.wantKey || pred.Value != tt.wantValue {
				t.Errorf("got %q=%q, want %q=%q", pred.Key, pred.Value, tt.wantKey, tt.wantValue)
			}
		})
	}
}

func TestFilterExprJSONRoundTrip(t *testing.T) {
	raw := `{"sourceSystemIds":["src-1","src-2"],"tags":["host=db-1","env=prod"]}`

	var expr FilterExpr
	if err := json.Unmarshal([]byte(raw), &expr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(expr.SourceSystemIDs) != 2 || len(expr.Tags) != 2 {
		t.Fatalf("expr = %+v", expr)
	}
	if expr.Tags[0].Key != "host" || expr.Tags[0].Value != "db-1" {
		t.Errorf("tag = %+v", expr.Tags[0])
	}

	data, err := json.Marshal(expr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again FilterExpr
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if len(again.Tags) != 2 || again.Tags[1].String() != "env=prod" {
		t.Errorf("round trip lost tags: %+v", again.Tags)
	}
}

func TestFilterExprUnmarshalRejectsBadTag(t *testing.T) {
	var expr FilterExpr
	err := json.Unmarshal([]byte(`{"tags":["notags"]}`), &expr)
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFilterExprEmpty(t *testing.T) {
	var expr FilterExpr
	if !expr.Empty() {
		t.Error("zero expr should be empty")
	}
	expr.SourceSystemIDs = []string{"src-1"}
	if expr.Empty() {
		t.Error("expr with sources should not be empty")
	}
}

func TestDecodeSettings(t *testing.T) {
	settings, err := DecodeSettings(MediaEmail, []byte(`{"email_address":"a@x.com","synced":true}`))
	if err != nil {
		t.Fatalf("decode email: %v", err)
	}
	es, ok := settings.(*EmailSettings)
	if !ok || es.EmailAddress != "a@x.com" || !es.Synced {
		t.Errorf("settings = %+v", settings)
	}

	settings, err = DecodeSettings(MediaSMS, []byte(`{"phone_number":"+4747474700"}`))
	if err != nil {
		t.Fatalf("decode sms: %v", err)
	}
	if ss, ok := settings.(*SMSSettings); !ok || ss.PhoneNumber != "+4747474700" {
		t.Errorf("settings = %+v", settings)
	}

	if _, err := DecodeSettings("unknown", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown slug")
	}
}
