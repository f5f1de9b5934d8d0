package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// Gateway operations, as recorded in Call.Op.
const (
	OpExecute = "execute"
	OpCall    = "call"
	OpExists  = "exists"
	OpCount   = "count"
	OpFields  = "fields"
	OpStream  = "stream"
)

// Table is an in-memory object held by FakeGateway.
type Table struct {
	Fields []string
	Rows   [][]any
}

// Call records one gateway invocation.
type Call struct {
	Op   string
	Name string
	Args []any
}

// ProcedureFunc emulates a server procedure against the fake.
type ProcedureFunc func(g *FakeGateway, args []any) error

// ExecuteFunc replaces the default Execute behaviour.
type ExecuteFunc func(ctx context.Context, stmt string) (int64, error)

// FakeGateway is an in-memory selection.Gateway that records every call.
//
// Object names are matched case-insensitively. Unknown procedures succeed
// without effect.
type FakeGateway struct {
	mu      sync.Mutex
	tables  map[string]*Table
	procs   map[string]ProcedureFunc
	fail    map[string]error
	calls   []Call
	limit   selection.LimitStyle
	execute ExecuteFunc
}

var _ selection.Gateway = (*FakeGateway)(nil)

// NewFakeGateway creates an empty fake using LimitSuffix.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		tables: make(map[string]*Table),
		procs:  make(map[string]ProcedureFunc),
		fail:   make(map[string]error),
		limit:  selection.LimitSuffix,
	}
}

// SetLimitStyle changes the reported limit style.
func (g *FakeGateway) SetLimitStyle(style selection.LimitStyle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limit = style
}

// OnExecute installs fn as the Execute implementation.
func (g *FakeGateway) OnExecute(fn ExecuteFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.execute = fn
}

// OnProcedure registers fn for the named procedure.
func (g *FakeGateway) OnProcedure(name string, fn ProcedureFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.procs[strings.ToLower(name)] = fn
}

// Fail makes op on name return err. An empty name fails op for every name.
func (g *FakeGateway) Fail(op, name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[failKey(op, name)] = err
}

// AddTable creates or replaces an object.
func (g *FakeGateway) AddTable(name string, fields []string, rows ...[]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tables[strings.ToLower(name)] = &Table{Fields: fields, Rows: rows}
}

// Drop removes an object if present.
func (g *FakeGateway) Drop(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tables, strings.ToLower(name))
}

// Has reports whether an object exists.
func (g *FakeGateway) Has(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.tables[strings.ToLower(name)]
	return ok
}

// Calls returns a copy of the recorded calls.
func (g *FakeGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount counts calls of op on name. An empty name counts every call
// of op.
func (g *FakeGateway) CallCount(op, name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op && (name == "" || strings.EqualFold(c.Name, name)) {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call of op, if any.
func (g *FakeGateway) LastCall(op string) (Call, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].Op == op {
			return g.calls[i], true
		}
	}
	return Call{}, false
}

// LimitStyle implements selection.Gateway.
func (g *FakeGateway) LimitStyle() selection.LimitStyle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// Execute implements selection.Gateway.
func (g *FakeGateway) Execute(ctx context.Context, stmt string) (int64, error) {
	g.mu.Lock()
	err := g.record(OpExecute, stmt, nil)
	fn := g.execute
	g.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if fn != nil {
		return fn(ctx, stmt)
	}
	return 0, ctx.Err()
}

// CallProcedure implements selection.Gateway.
func (g *FakeGateway) CallProcedure(ctx context.Context, name string, args []any) error {
	g.mu.Lock()
	err := g.record(OpCall, name, args)
	fn := g.procs[strings.ToLower(name)]
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if fn != nil {
		return fn(g, args)
	}
	return nil
}

// ObjectExists implements selection.Gateway.
func (g *FakeGateway) ObjectExists(_ context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpExists, name, nil); err != nil {
		return false, err
	}
	_, ok := g.tables[strings.ToLower(name)]
	return ok, nil
}

// RowCount implements selection.Gateway.
func (g *FakeGateway) RowCount(_ context.Context, name string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpCount, name, nil); err != nil {
		return 0, err
	}
	t, ok := g.tables[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("object %s does not exist", name)
	}
	return int64(len(t.Rows)), nil
}

// ListFields implements selection.Gateway.
func (g *FakeGateway) ListFields(_ context.Context, name string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpFields, name, nil); err != nil {
		return nil, err
	}
	t, ok := g.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("object %s does not exist", name)
	}
	return append([]string(nil), t.Fields...), nil
}

// StreamRows implements selection.Gateway. Values are projected onto fields
// by name.
func (g *FakeGateway) StreamRows(ctx context.Context, name string, fields []string, fn func(values []any) error) error {
	g.mu.Lock()
	if err := g.record(OpStream, name, nil); err != nil {
		g.mu.Unlock()
		return err
	}
	t, ok := g.tables[strings.ToLower(name)]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("object %s does not exist", name)
	}
	index := make([]int, len(fields))
	for i, f := range fields {
		index[i] = -1
		for j, tf := range t.Fields {
			if strings.EqualFold(f, tf) {
				index[i] = j
			}
		}
		if index[i] < 0 {
			g.mu.Unlock()
			return fmt.Errorf("field %s not found in %s", f, name)
		}
	}
	rows := make([][]any, len(t.Rows))
	copy(rows, t.Rows)
	g.mu.Unlock()

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := make([]any, len(index))
		for i, j := range index {
			values[i] = r[j]
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return nil
}

// record appends a call and returns any injected failure. Callers hold mu.
func (g *FakeGateway) record(op, name string, args []any) error {
	g.calls = append(g.calls, Call{Op: op, Name: name, Args: append([]any(nil), args...)})
	if err, ok := g.fail[failKey(op, name)]; ok {
		return err
	}
	if err, ok := g.fail[failKey(op, "")]; ok {
		return err
	}
	return nil
}

func failKey(op, name string) string {
	return op + "\x00" + strings.ToLower(name)
}

// EmulateSelection returns a selection procedure that creates the
// temporary objects from the call arguments. A nil table is not created.
func EmulateSelection(point, poly, flat *Table) ProcedureFunc {
	return func(g *FakeGateway, args []any) error {
		names, err := namesFromArgs(args)
		if err != nil {
			return err
		}
		split, _ := args[len(args)-1].(int)
		create := func(name string, t *Table) {
			if t != nil {
				g.AddTable(name, t.Fields, t.Rows...)
			}
		}
		if split != 0 {
			create(names.Point, point)
			create(names.Poly, poly)
		} else {
			create(names.Flat, flat)
		}
		return nil
	}
}

// EmulateClear returns a clear procedure that drops every temporary object.
func EmulateClear() ProcedureFunc {
	return func(g *FakeGateway, args []any) error {
		names, err := namesFromArgs(args)
		if err != nil {
			return err
		}
		for _, n := range names.All() {
			g.Drop(n)
		}
		return nil
	}
}

// namesFromArgs reads schema, table and token from selection (8 args) or
// clear (3 args) procedure arguments.
func namesFromArgs(args []any) (selection.TempNames, error) {
	var schema, table, token string
	var ok1, ok2, ok3 bool
	switch len(args) {
	case 8:
		schema, ok1 = args[0].(string)
		table, ok2 = args[1].(string)
		token, ok3 = args[6].(string)
	case 3:
		schema, ok1 = args[0].(string)
		table, ok2 = args[1].(string)
		token, ok3 = args[2].(string)
	default:
		return selection.TempNames{}, fmt.Errorf("unexpected argument count %d", len(args))
	}
	if !ok1 || !ok2 || !ok3 {
		return selection.TempNames{}, fmt.Errorf("schema, table and token must be strings")
	}
	return selection.NewTempNames(schema, table, token), nil
}
