// Package filtering parses and evaluates declarative incident filters.
// A filter expression is a conjunction over source-system membership,
// required tags and an optional expr-lang predicate. Parsing is strict
// and happens at filter-creation time, so evaluation never fails.
package filtering

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stveit/argus/internal/models"
)

// rawExpr is the wire form of a filter expression, matching the filter
// string stored per filter: {"sourceSystemIds": [...], "tags": ["k=v"],
// "expression": "..."}.
type rawExpr struct {
	SourceSystemIDs []string `json:"sourceSystemIds"`
	Tags            []string `json:"tags"`
	Expression      string   `json:"expression"`
}

// Parse parses a raw filter string into a FilterExpr. Invalid structure,
// unknown keys, malformed tags and uncompilable expressions all fail
// with a ValidationError instead of silently matching all or none.
func Parse(raw string) (models.FilterExpr, error) {
	var expr models.FilterExpr

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var re rawExpr
	if err := dec.Decode(&re); err != nil {
		return expr, &models.ValidationError{
			Field:  "filter",
			Reason: fmt.Sprintf("malformed filter: %v", err),
		}
	}
	if dec.More() {
		return expr, &models.ValidationError{
			Field:  "filter",
			Reason: "malformed filter: trailing data",
		}
	}

	expr.SourceSystemIDs = re.SourceSystemIDs
	for _, tag := range re.Tags {
		pred, err := models.ParseTagPredicate(tag)
		if err != nil {
			return models.FilterExpr{}, err
		}
		expr.Tags = append(expr.Tags, pred)
	}

	if re.Expression != "" {
		if _, err := compileExpression(re.Expression); err != nil {
			return models.FilterExpr{}, &models.ValidationError{
				Field:  "expression",
				Reason: err.Error(),
			}
		}
		expr.Expression = re.Expression
	}

	return expr, nil
}

// Validate checks an already-structured expression the same way Parse
// does, for filters submitted as structured payloads rather than strings.
func Validate(expr models.FilterExpr) error {
	for _, pred := range expr.Tags {
		if pred.Key == "" {
			return &models.ValidationError{Field: "tags", Reason: "tag key must not be empty"}
		}
	}
	if expr.Expression != "" {
		if _, err := compileExpression(expr.Expression); err != nil {
			return &models.ValidationError{Field: "expression", Reason: err.Error()}
		}
	}
	return nil
}

// Matches reports whether the incident satisfies every dimension of the
// expression. Empty dimensions are wildcards. Matches never fails:
// expressions were compiled at creation time, and a runtime evaluation
// error counts as no match.
func Matches(expr models.FilterExpr, incident *models.Incident) bool {
	if expr.Empty() {
		return true
	}

	if len(expr.SourceSystemIDs) > 0 {
		found := false
		for _, id := range expr.SourceSystemIDs {
			if id == incident.SourceSystemID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, pred := range expr.Tags {
		value, ok := incident.Tag(pred.Key)
		if !ok || value != pred.Value {
			return false
		}
	}

	if expr.Expression != "" && !evalExpression(expr.Expression, incident) {
		return false
	}

	return true
}

// Preview returns the subset of incidents the expression would match.
// It runs the exact same predicate as Matches, so previewing an unsaved
// filter gives identical results to live matching.
func Preview(expr models.FilterExpr, incidents []*models.Incident) []*models.Incident {
	matched := make([]*models.Incident, 0, len(incidents))
	for _, incident := range incidents {
		if Matches(expr, incident) {
			matched = append(matched, incident)
		}
	}
	return matched
}
