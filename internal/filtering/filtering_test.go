package filtering

import (
	"testing"

	"github.com/stveit/argus/internal/models"
)

func incident(source, description string, tags map[string]string) *models.Incident {
	return models.NewIncident(source, description, tags)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "sources and tags",
			raw:  `{"sourceSystemIds": ["src-1"], "tags": ["host=db-1"]}`,
		},
		{
			name: "empty object is wildcard",
			raw:  `{}`,
		},
		{
			name: "with expression",
			raw:  `{"expression": "source == \"src-1\" && tags[\"env\"] == \"prod\""}`,
		},
		{
			name:    "unknown key",
			raw:     `{"sourceSystemIds": [], "bogus": true}`,
			wantErr: true,
		},
		{
			name:    "malformed tag",
			raw:     `{"tags": ["no-separator"]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `sourceSystemIds=1`,
			wantErr: true,
		},
		{
			name:    "trailing data",
			raw:     `{} {}`,
			wantErr: true,
		},
		{
			name:    "uncompilable expression",
			raw:     `{"expression": "tags[["}`,
			wantErr: true,
		},
		{
			name:    "non-boolean expression",
			raw:     `{"expression": "description"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if tt.wantErr {
				if !models.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	prodDB := incident("src-1", "disk full", map[string]string{"host": "db-1", "env": "prod"})

	tests := []struct {
		name string
		raw  string
		inc  *models.Incident
		want bool
	}{
		{"empty matches anything", `{}`, prodDB, true},
		{"source member", `{"sourceSystemIds": ["src-0", "src-1"]}`, prodDB, true},
		{"source not member", `{"sourceSystemIds": ["src-2"]}`, prodDB, false},
		{"all tags present", `{"tags": ["host=db-1", "env=prod"]}`, prodDB, true},
		{"one tag wrong value", `{"tags": ["host=db-1", "env=dev"]}`, prodDB, false},
		{"missing tag key", `{"tags": ["region=eu"]}`, prodDB, false},
		{"conjunction of dimensions", `{"sourceSystemIds": ["src-1"], "tags": ["env=prod"]}`, prodDB, true},
		{"conjunction fails on one dimension", `{"sourceSystemIds": ["src-2"], "tags": ["env=prod"]}`, prodDB, false},
		{"expression matches", `{"expression": "tags[\"env\"] == \"prod\""}`, prodDB, true},
		{"expression rejects", `{"expression": "source == \"src-9\""}`, prodDB, false},
		{"expression on untagged incident", `{"expression": "tags[\"env\"] == \"prod\""}`, incident("src-1", "x", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := Matches(expr, tt.inc); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

// Preview must agree with Matches for every incident, so previewing an
// unsaved filter predicts live behavior exactly.
func TestPreviewAgreesWithMatches(t *testing.T) {
	incidents := []*models.Incident{
		incident("src-1", "disk full", map[string]string{"env": "prod"}),
		incident("src-2", "cpu high", map[string]string{"env": "dev"}),
		incident("src-1", "mem high", nil),
	}

	expr, err := Parse(`{"sourceSystemIds": ["src-1"], "tags": ["env=prod"]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	matched := Preview(expr, incidents)
	if len(matched) != 1 {
		t.Fatalf("preview matched %d, want 1", len(matched))
	}
	for _, inc := range incidents {
		inPreview := false
		for _, m := range matched {
			if m == inc {
				inPreview = true
			}
		}
		if inPreview != Matches(expr, inc) {
			t.Errorf("preview and live matching disagree for %s", inc.Description)
		}
	}
}

func TestValidate(t *testing.T) {
	good := models.FilterExpr{
		Tags:       []models.TagPredicate{{Key: "env", Value: "prod"}},
		Expression: `source == "src-1"`,
	}
	if err := Validate(good); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := models.FilterExpr{Tags: []models.TagPredicate{{Key: "", Value: "x"}}}
	if err := Validate(bad); !models.IsValidationError(err) {
		t.Errorf("expected validation error for empty key, got %v", err)
	}
}
