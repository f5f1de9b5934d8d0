package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// EmulatedProcedures returns options registering Go versions of the
// selection and clear procedures under the given names. They follow the
// server contract: the selection procedure receives schema, table, columns,
// filter (quotes doubled), group-by, order-by, token and split flag; the
// clear procedure receives schema, table and token.
//
// Splitting inspects the first field named in geomFields and classifies rows
// by the WKT type prefix of its text value.
func EmulatedProcedures(selectName, clearName string, geomFields []string) []Option {
	if selectName == "" {
		selectName = selection.DefaultSelectProcedure
	}
	if clearName == "" {
		clearName = selection.DefaultClearProcedure
	}
	return []Option{
		WithProcedure(selectName, SelectProcedure(geomFields)),
		WithProcedure(clearName, ClearProcedure()),
	}
}

// SelectProcedure materialises a selection into temporary tables.
func SelectProcedure(geomFields []string) Procedure {
	if len(geomFields) == 0 {
		geomFields = selection.DefaultGeometryFields
	}
	return func(ctx context.Context, db *DB, args []any) error {
		if len(args) != 8 {
			return fmt.Errorf("selection procedure expects 8 arguments, got %d", len(args))
		}
		str := make([]string, 7)
		for i := range str {
			s, ok := args[i].(string)
			if !ok {
				return fmt.Errorf("selection procedure argument %d must be a string, got %T", i, args[i])
			}
			str[i] = unescapeLiteral(s)
		}
		split, err := flagArg(args[7])
		if err != nil {
			return err
		}

		req := selection.Request{
			Schema:      str[0],
			Table:       str[1],
			Columns:     str[2],
			Filter:      str[3],
			GroupBy:     str[4],
			OrderBy:     str[5],
			CallerToken: str[6],
		}
		names := selection.NewTempNames(req.Schema, req.Table, req.CallerToken)
		if err := dropAll(ctx, db, names); err != nil {
			return err
		}

		stmt := selection.SelectStatement(req, selection.LimitNone)
		if !split {
			return db.exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", QuoteName(names.Flat), stmt))
		}

		geom, err := db.geometryColumn(ctx, stmt, geomFields)
		if err != nil {
			return err
		}
		point, poly := "0", "0"
		if geom != "" {
			point = wktPrefix(geom, "POINT", "MULTIPOINT")
			poly = wktPrefix(geom, "POLYGON", "MULTIPOLYGON")
		}
		if err := db.exec(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM (%s) WHERE %s",
			QuoteName(names.Point), stmt, point)); err != nil {
			return err
		}
		return db.exec(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM (%s) WHERE %s",
			QuoteName(names.Poly), stmt, poly))
	}
}

// ClearProcedure drops every temporary object of a selection. Missing
// objects are ignored.
func ClearProcedure() Procedure {
	return func(ctx context.Context, db *DB, args []any) error {
		if len(args) != 3 {
			return fmt.Errorf("clear procedure expects 3 arguments, got %d", len(args))
		}
		str := make([]string, 3)
		for i := range str {
			s, ok := args[i].(string)
			if !ok {
				return fmt.Errorf("clear procedure argument %d must be a string, got %T", i, args[i])
			}
			str[i] = unescapeLiteral(s)
		}
		return dropAll(ctx, db, selection.NewTempNames(str[0], str[1], str[2]))
	}
}

func dropAll(ctx context.Context, db *DB, names selection.TempNames) error {
	for _, name := range names.All() {
		if err := db.exec(ctx, "DROP TABLE IF EXISTS "+QuoteName(name)); err != nil {
			return err
		}
	}
	return nil
}

// geometryColumn returns the first result column matching one of fields,
// or "" when the selection carries no geometry.
func (d *DB) geometryColumn(ctx context.Context, stmt string, fields []string) (string, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM (%s) LIMIT 0", stmt))
	if err != nil {
		return "", err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		for _, f := range fields {
			if strings.EqualFold(c, f) {
				return c, nil
			}
		}
	}
	return "", nil
}

func (d *DB) exec(ctx context.Context, stmt string) error {
	d.logger.Debug("execute", "sql", stmt)
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}

func wktPrefix(column string, types ...string) string {
	expr := fmt.Sprintf("upper(ltrim(CAST(%s AS TEXT)))", QuoteIdent(column))
	conds := make([]string, len(types))
	for i, t := range types {
		conds[i] = fmt.Sprintf("%s LIKE '%s%%'", expr, t)
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// unescapeLiteral reverses quote doubling, as the server does when it
// parses a string literal argument.
func unescapeLiteral(s string) string {
	return strings.ReplaceAll(s, "''", "'")
}

func flagArg(v any) (bool, error) {
	switch f := v.(type) {
	case int:
		return f != 0, nil
	case int64:
		return f != 0, nil
	case bool:
		return f, nil
	default:
		return false, fmt.Errorf("split flag must be an integer, got %T", v)
	}
}
