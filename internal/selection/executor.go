package selection

import (
	"context"
	"log/slog"
	"strings"
)

// Default procedure names of the server-side contract.
const (
	DefaultSelectProcedure = "AFSelectSppSubset"
	DefaultClearProcedure  = "AFClearSppSubset"
)

// ObjectState describes one checked temporary object.
type ObjectState struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Rows   int64  `json:"rows"`
}

// TempResult is the set of temporary objects produced by one selection.
// It is owned by a single run and never outlives it.
type TempResult struct {
	Split bool        `json:"split"`
	Names TempNames   `json:"-"`
	Point ObjectState `json:"point"`
	Poly  ObjectState `json:"poly"`
	Flat  ObjectState `json:"flat"`
}

// Parts returns the objects relevant to the result shape: point then poly
// for a split result, the flat table otherwise.
func (r TempResult) Parts() []ObjectState {
	if r.Split {
		return []ObjectState{r.Point, r.Poly}
	}
	return []ObjectState{r.Flat}
}

// Created reports whether any expected object exists.
func (r TempResult) Created() bool {
	for _, p := range r.Parts() {
		if p.Exists {
			return true
		}
	}
	return false
}

// TotalRows sums the row counts of the relevant parts.
func (r TempResult) TotalRows() int64 {
	var n int64
	for _, p := range r.Parts() {
		n += p.Rows
	}
	return n
}

// Empty reports whether the selection produced no rows at all, either
// because no object exists or because every object is empty.
func (r TempResult) Empty() bool {
	return r.TotalRows() == 0
}

// EscapeFilter doubles single quotes so the filter survives being embedded
// in a string literal. This is the only fragment that is escaped.
func EscapeFilter(filter string) string {
	return strings.ReplaceAll(filter, "'", "''")
}

// ProcedureArgs returns the positional arguments of the selection procedure:
// schema, table, columns, filter, group-by, order-by, token, split flag.
//
// Columns, group-by and order-by are not escaped; a quote in any of them
// corrupts the call. This gap is deliberate until product intent is settled.
func ProcedureArgs(req Request, table string, split bool) []any {
	flag := 0
	if split {
		flag = 1
	}
	return []any{
		req.Schema,
		table,
		req.Columns,
		EscapeFilter(req.Filter),
		req.GroupBy,
		req.OrderBy,
		req.CallerToken,
		flag,
	}
}

// Executor invokes the selection procedure and inspects what it produced.
type Executor struct {
	gw        Gateway
	procedure string
	logger    *slog.Logger
}

// NewExecutor creates an Executor calling the named selection procedure.
func NewExecutor(gw Gateway, procedure string, logger *slog.Logger) *Executor {
	if procedure == "" {
		procedure = DefaultSelectProcedure
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{gw: gw, procedure: procedure, logger: logger}
}

// Run calls the selection procedure and checks the expected objects.
//
// A result with no existing objects, or only empty ones, is returned without
// error: the request may legitimately match nothing. Procedure and check
// failures are KindExecution errors. The returned TempResult always carries
// the names so the caller can clean up after a failure.
func (e *Executor) Run(ctx context.Context, req Request, split bool) (TempResult, error) {
	base, err := req.BaseTable()
	if err != nil {
		return TempResult{}, err
	}

	names := NewTempNames(req.Schema, base, req.CallerToken)
	res := TempResult{
		Split: split,
		Names: names,
		Point: ObjectState{Name: names.Point},
		Poly:  ObjectState{Name: names.Poly},
		Flat:  ObjectState{Name: names.Flat},
	}

	e.logger.Debug("calling selection procedure",
		"procedure", e.procedure, "table", base, "split", split)
	if err := e.gw.CallProcedure(ctx, e.procedure, ProcedureArgs(req, base, split)); err != nil {
		return res, NewError(KindExecution, "call "+e.procedure, err)
	}

	objects := []*ObjectState{&res.Flat}
	if split {
		objects = []*ObjectState{&res.Point, &res.Poly}
	}
	for _, obj := range objects {
		exists, err := e.gw.ObjectExists(ctx, obj.Name)
		if err != nil {
			return res, NewError(KindExecution, "check "+obj.Name, err)
		}
		obj.Exists = exists
		if !exists {
			continue
		}
		rows, err := e.gw.RowCount(ctx, obj.Name)
		if err != nil {
			return res, NewError(KindExecution, "count "+obj.Name, err)
		}
		obj.Rows = rows
	}

	e.logger.Debug("selection complete",
		"point_rows", res.Point.Rows, "poly_rows", res.Poly.Rows, "flat_rows", res.Flat.Rows)
	return res, nil
}
