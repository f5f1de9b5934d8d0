package selection

import (
	"strings"
	"unicode"
)

// Wildcard is the column expression that selects every live field.
const Wildcard = "*"

// Request is one analyst selection. It is treated as an immutable value.
type Request struct {
	Schema      string `json:"schema"`
	Table       string `json:"table,omitempty"`
	Columns     string `json:"columns"`
	Filter      string `json:"filter,omitempty"`
	GroupBy     string `json:"group_by,omitempty"`
	OrderBy     string `json:"order_by,omitempty"`
	CallerToken string `json:"caller_token"`
}

// Validate checks the request before any remote call.
// Either Table is set or Filter introduces its own FROM source.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Schema) == "" {
		return NewError(KindConfiguration, "validate request", errMissing("schema"))
	}
	if strings.TrimSpace(r.Columns) == "" {
		return NewError(KindConfiguration, "validate request", errMissing("columns"))
	}
	if strings.TrimSpace(r.CallerToken) == "" {
		return NewError(KindConfiguration, "validate request", errMissing("caller token"))
	}
	if strings.TrimSpace(r.Table) == "" && !r.FilterIsSource() {
		return Errorf(KindConfiguration, "validate request",
			"a table is required unless the filter begins with FROM")
	}
	if _, err := r.BaseTable(); err != nil {
		return err
	}
	return nil
}

// FilterIsSource reports whether the filter begins with FROM and therefore
// replaces the table-qualified source of the query.
func (r Request) FilterIsSource() bool {
	return hasLeadingKeyword(r.Filter, "FROM")
}

// BaseTable returns the table name used to scope temporary objects.
// When Table is empty it is taken from the first identifier after FROM
// in the filter, without schema qualifier or quoting.
func (r Request) BaseTable() (string, error) {
	if t := strings.TrimSpace(r.Table); t != "" {
		return t, nil
	}
	if !r.FilterIsSource() {
		return "", NewError(KindConfiguration, "base table", errMissing("table"))
	}

	rest := strings.TrimSpace(r.Filter)[len("FROM"):]
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	end := strings.IndexFunc(rest, func(c rune) bool {
		return unicode.IsSpace(c) || c == ',' || c == '(' || c == ')'
	})
	if end >= 0 {
		rest = rest[:end]
	}
	if i := strings.LastIndex(rest, "."); i >= 0 {
		rest = rest[i+1:]
	}
	rest = strings.Trim(rest, `[]"`+"`")
	if rest == "" {
		return "", Errorf(KindConfiguration, "base table",
			"cannot derive a table name from the FROM clause; set the table explicitly")
	}
	return rest, nil
}

// QualifiedTable returns schema.table for the request's own table.
func (r Request) QualifiedTable() string {
	return Qualify(r.Schema, strings.TrimSpace(r.Table))
}

// Qualify joins a schema and object name.
func Qualify(schema, object string) string {
	return schema + "." + object
}

// hasLeadingKeyword reports whether s starts with keyword as a whole word,
// ignoring case and leading whitespace.
func hasLeadingKeyword(s, keyword string) bool {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return false
	}
	if len(s) == len(keyword) {
		return true
	}
	next := rune(s[len(keyword)])
	return unicode.IsSpace(next) || next == '('
}

type missingError string

func (m missingError) Error() string { return string(m) + " is required" }

func errMissing(field string) error { return missingError(field) }
