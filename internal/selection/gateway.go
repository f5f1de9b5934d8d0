package selection

import "context"

// LimitStyle describes how a dialect limits a trial statement to one row.
type LimitStyle int

const (
	// LimitTop prefixes the column list with "TOP 1".
	LimitTop LimitStyle = iota
	// LimitSuffix appends "LIMIT 1" to the statement.
	LimitSuffix
	// LimitNone adds no limiting clause.
	LimitNone
)

// Gateway is the database collaborator used by the selection stages.
// Object names are schema-qualified ("schema.object").
type Gateway interface {
	// Execute runs a statement and returns the number of rows affected.
	Execute(ctx context.Context, stmt string) (int64, error)

	// CallProcedure invokes a server-side procedure with positional arguments.
	CallProcedure(ctx context.Context, name string, args []any) error

	// ObjectExists reports whether a table or view with the name exists.
	ObjectExists(ctx context.Context, name string) (bool, error)

	// RowCount returns the number of rows in an object.
	RowCount(ctx context.Context, name string) (int64, error)

	// ListFields returns the live field names of an object in column order.
	ListFields(ctx context.Context, name string) ([]string, error)

	// StreamRows calls fn once per row of the object with values for fields,
	// in the order given.
	StreamRows(ctx context.Context, name string, fields []string, fn func(values []any) error) error

	// LimitStyle reports how trial statements are limited for this dialect.
	LimitStyle() LimitStyle
}
