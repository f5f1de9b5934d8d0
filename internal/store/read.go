package store

import (
	"context"
	"fmt"
	"time"
)

// HasTable reports whether the container holds the named object.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

// Fields returns the column names of a table in column order.
func (s *Store) Fields(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	fields := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return fields, nil
}

// Outputs returns every catalog record in insertion order.
//
// Returns an empty slice (not nil) when nothing has been recorded.
func (s *Store) Outputs(ctx context.Context) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, object, source, row_count, created_at
		FROM _outputs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	outputs := []Output{}
	for rows.Next() {
		var out Output
		var created string
		if err := rows.Scan(&out.RunID, &out.Object, &out.Source, &out.Rows, &created); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out.CreatedAt, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		outputs = append(outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return outputs, nil
}
