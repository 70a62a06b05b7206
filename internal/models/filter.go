package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TagPredicate is one "key=value" requirement of a filter expression.
type TagPredicate struct {
	Key   string
	Value string
}

// String returns the predicate in "key=value" form.
func (p TagPredicate) String() string {
	return p.Key + "=" + p.Value
}

// ParseTagPredicate splits a "key=value" string. The value may contain
// further '=' characters; the key may not be empty.
func ParseTagPredicate(s string) (TagPredicate, error) {
	key, value, found := strings.Cut(s, "=")
	if !found || key == "" {
		return TagPredicate{}, &ValidationError{
			Field:  "tags",
			Reason: fmt.Sprintf("invalid tag %q, expected key=value", s),
		}
	}
	return TagPredicate{Key: key, Value: value}, nil
}

// FilterExpr is a declarative conjunction over incident attributes.
// An empty dimension acts as a wildcard for that dimension.
type FilterExpr struct {
	// SourceSystemIDs restricts matching to incidents from any of the
	// listed source systems.
	SourceSystemIDs []string `json:"sourceSystemIds,omitempty"`
	// Tags requires the incident to carry every listed key=value tag.
	Tags []TagPredicate `json:"-"`
	// Expression is an optional expr-lang predicate over the incident.
	Expression string `json:"expression,omitempty"`
}

// Empty reports whether the expression has no dimensions at all.
func (e *FilterExpr) Empty() bool {
	return len(e.SourceSystemIDs) == 0 && len(e.Tags) == 0 && e.Expression == ""
}

// filterExprWire is the JSON wire form, with tags as "key=value" strings.
type filterExprWire struct {
	SourceSystemIDs []string `json:"sourceSystemIds,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Expression      string   `json:"expression,omitempty"`
}

// MarshalJSON encodes the expression with tags in "key=value" form.
func (e FilterExpr) MarshalJSON() ([]byte, error) {
	wire := filterExprWire{
		SourceSystemIDs: e.SourceSystemIDs,
		Expression:      e.Expression,
	}
	for _, pred := range e.Tags {
		wire.Tags = append(wire.Tags, pred.String())
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire form, validating tag syntax.
func (e *FilterExpr) UnmarshalJSON(data []byte) error {
	var wire filterExprWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.SourceSystemIDs = wire.SourceSystemIDs
	e.Expression = wire.Expression
	e.Tags = nil
	for _, tag := range wire.Tags {
		pred, err := ParseTagPredicate(tag)
		if err != nil {
			return err
		}
		e.Tags = append(e.Tags, pred)
	}
	return nil
}

// Filter is a named, user-owned filter expression. The name is unique per
// user. A filter cannot be deleted while a notification profile references
// it.
type Filter struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Expr      FilterExpr `json:"filter"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewFilter creates a filter with initialized ID and timestamps.
func NewFilter(userID, name string, expr FilterExpr) *Filter {
	now := time.Now()
	return &Filter{
		ID:        newID(),
		UserID:    userID,
		Name:      name,
		Expr:      expr,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
