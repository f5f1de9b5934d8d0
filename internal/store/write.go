package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RowSource feeds rows to yield, one call per row, in field order.
type RowSource func(yield func(values []any) error) error

// WriteTable writes rows into the named table inside one transaction and
// returns the number of rows inserted.
//
// Unless appending, an existing table is dropped and recreated with fields
// as untyped columns. When appending to a missing table it is created.
func (s *Store) WriteTable(ctx context.Context, name string, fields []string, appendRows bool, rows RowSource) (int64, error) {
	if err := checkObjectName(name); err != nil {
		return 0, fmt.Errorf("write table: %w", err)
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("write table %s: no fields", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write table %s: begin: %w", name, err)
	}
	defer tx.Rollback()

	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
		marks[i] = "?"
	}
	table := quoteIdent(name)

	if !appendRows {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return 0, fmt.Errorf("write table %s: drop: %w", name, err)
		}
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("write table %s: create: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, fmt.Errorf("write table %s: prepare: %w", name, err)
	}
	defer stmt.Close()

	var n int64
	err = rows(func(values []any) error {
		if len(values) != len(fields) {
			return fmt.Errorf("row has %d values, want %d", len(values), len(fields))
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write table %s: insert: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write table %s: commit: %w", name, err)
	}
	return n, nil
}

// Output is one catalog record.
type Output struct {
	RunID     string    `json:"run_id"`
	Object    string    `json:"object"`
	Source    string    `json:"source"`
	Rows      int64     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordOutput appends a catalog record.
func (s *Store) RecordOutput(ctx context.Context, out Output) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO _outputs (run_id, object, source, row_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		out.RunID,
		out.Object,
		out.Source,
		out.Rows,
		out.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record output: %w", err)
	}
	return nil
}
