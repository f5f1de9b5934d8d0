package selection

import (
	"context"
	"strings"
)

// DefaultGeometryFields are the geometry column names recognized when no
// configuration overrides them.
var DefaultGeometryFields = []string{"SP_GEOMETRY", "Shape"}

// Classifier decides whether a selection result carries geometry.
//
// This is a textual heuristic, not a schema-authoritative check. Geometry
// reached through joins or expressions the live-field lookup cannot see is
// missed, and a column expression that merely contains a geometry name
// (e.g. "ShapeArea") is classified spatial. Both are known limitations.
type Classifier struct {
	gw         Gateway
	geomFields []string
}

// NewClassifier creates a Classifier. An empty geomFields uses
// DefaultGeometryFields.
func NewClassifier(gw Gateway, geomFields []string) *Classifier {
	if len(geomFields) == 0 {
		geomFields = DefaultGeometryFields
	}
	return &Classifier{gw: gw, geomFields: geomFields}
}

// Classify returns true if the request's result set is spatial.
// Only the wildcard column expression triggers a live field lookup.
func (c *Classifier) Classify(ctx context.Context, req Request) (bool, error) {
	upper := strings.ToUpper(req.Columns)
	for _, g := range c.geomFields {
		if strings.Contains(upper, strings.ToUpper(g)) {
			return true, nil
		}
	}

	if strings.TrimSpace(req.Columns) != Wildcard {
		return false, nil
	}

	base, err := req.BaseTable()
	if err != nil {
		return false, err
	}
	fields, err := c.gw.ListFields(ctx, Qualify(req.Schema, base))
	if err != nil {
		return false, NewError(KindExecution, "list fields", err)
	}
	for _, f := range fields {
		if c.IsGeometry(f) {
			return true, nil
		}
	}
	return false, nil
}

// IsGeometry reports whether field is a recognized geometry column name.
func (c *Classifier) IsGeometry(field string) bool {
	return MatchesAny(field, c.geomFields)
}

// MatchesAny reports whether name equals one of names, ignoring case.
func MatchesAny(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
