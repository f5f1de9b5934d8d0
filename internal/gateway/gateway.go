package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Procedure is a Go implementation of a server-side procedure.
type Procedure func(ctx context.Context, db *DB, args []any) error

// DB is a selection.Gateway backed by database/sql.
type DB struct {
	db     *sql.DB
	driver string
	procs  map[string]Procedure
	limit  selection.LimitStyle
	logger *slog.Logger
}

// Ensure DB implements selection.Gateway.
var _ selection.Gateway = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithProcedure registers a Go procedure under name (case-insensitive).
// Registered procedures take precedence over server procedures.
func WithProcedure(name string, proc Procedure) Option {
	return func(d *DB) { d.procs[strings.ToLower(name)] = proc }
}

// WithLogger sets the logger used for statement tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) { d.logger = logger }
}

// WithLimitStyle overrides the limiting clause used for trial statements,
// for servers reached through a dialect other than the driver's own.
func WithLimitStyle(style selection.LimitStyle) Option {
	return func(d *DB) { d.limit = style }
}

// Open connects to the database with the given driver and DSN.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q (valid: %s, %s)", driver, DriverSQLite, DriverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	d := &DB{
		db:     db,
		driver: driver,
		procs:  make(map[string]Procedure),
		limit:  selection.LimitSuffix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQL returns the underlying sql.DB.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Driver returns the driver name.
func (d *DB) Driver() string {
	return d.driver
}

// LimitStyle implements selection.Gateway. Both supported dialects limit
// with a trailing LIMIT clause unless WithLimitStyle says otherwise.
func (d *DB) LimitStyle() selection.LimitStyle {
	return d.limit
}

// Execute runs stmt. Queries are read to completion and the number of rows
// returned is reported; other statements report rows affected.
func (d *DB) Execute(ctx context.Context, stmt string) (int64, error) {
	d.logger.Debug("execute", "sql", stmt)
	if isQuery(stmt) {
		rows, err := d.db.QueryContext(ctx, stmt)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var n int64
		for rows.Next() {
			n++
		}
		return n, rows.Err()
	}

	res, err := d.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// CallProcedure invokes a registered Go procedure, or the server procedure
// through the dialect's call statement.
func (d *DB) CallProcedure(ctx context.Context, name string, args []any) error {
	if proc, ok := d.procs[strings.ToLower(name)]; ok {
		d.logger.Debug("call emulated procedure", "procedure", name, "args", len(args))
		return proc(ctx, d, args)
	}
	if d.driver == DriverSQLite {
		return fmt.Errorf("procedure %s is not available on %s", name, d.driver)
	}

	stmt, err := CallStatement(name, args)
	if err != nil {
		return err
	}
	d.logger.Debug("call procedure", "sql", stmt)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	return nil
}

// ObjectExists implements selection.Gateway.
func (d *DB) ObjectExists(ctx context.Context, name string) (bool, error) {
	schema, object := SplitName(name)

	var exists bool
	var err error
	switch d.driver {
	case DriverSQLite:
		var count int
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE type IN ('table', 'view') AND name = ?`,
			qualifySQLite(schema, "sqlite_master"))
		err = d.db.QueryRowContext(ctx, q, object).Scan(&count)
		exists = count > 0
	default:
		err = d.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, QuoteName(name)).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	return exists, nil
}

// RowCount implements selection.Gateway.
func (d *DB) RowCount(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteName(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// ListFields implements selection.Gateway. An object without fields
// (usually one that does not exist) is an error.
func (d *DB) ListFields(ctx context.Context, name string) ([]string, error) {
	schema, object := SplitName(name)

	var rows *sql.Rows
	var err error
	switch d.driver {
	case DriverSQLite:
		if schema == "" {
			schema = "main"
		}
		rows, err = d.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?, ?) ORDER BY cid`, object, schema)
	default:
		if schema == "" {
			schema = "public"
		}
		rows, err = d.db.QueryContext(ctx, `
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position
		`, schema, object)
	}
	if err != nil {
		return nil, fmt.Errorf("list fields of %s: %w", name, err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("list fields of %s: %w", name, err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fields of %s: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("object %s not found or has no fields", name)
	}
	return fields, nil
}

// StreamRows implements selection.Gateway.
func (d *DB) StreamRows(ctx context.Context, name string, fields []string, fn func(values []any) error) error {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = QuoteIdent(f)
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), QuoteName(name))

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	defer rows.Close()

	values := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		row := make([]any, len(values))
		copy(row, values)
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// CallStatement renders a procedure invocation with inline literals.
//
// String arguments are wrapped in single quotes without further escaping:
// the caller is responsible for escaping the fragments it wants protected.
func CallStatement(name string, args []any) (string, error) {
	lits := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			lits[i] = "NULL"
		case string:
			lits[i] = "'" + v + "'"
		case int:
			lits[i] = strconv.Itoa(v)
		case int64:
			lits[i] = strconv.FormatInt(v, 10)
		case bool:
			lits[i] = strings.ToUpper(strconv.FormatBool(v))
		default:
			return "", fmt.Errorf("unsupported procedure argument %d of type %T", i, a)
		}
	}
	return fmt.Sprintf("CALL %s(%s)", name, strings.Join(lits, ", ")), nil
}

// SplitName splits "schema.object" at the first dot. A name without a dot
// has an empty schema.
func SplitName(name string) (schema, object string) {
	if s, o, ok := strings.Cut(name, "."); ok {
		return s, o
	}
	return "", name
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteName quotes both parts of a schema-qualified name.
func QuoteName(name string) string {
	schema, object := SplitName(name)
	if schema == "" {
		return QuoteIdent(object)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(object)
}

func qualifySQLite(schema, object string) string {
	if schema == "" {
		return object
	}
	return QuoteIdent(schema) + "." + object
}

func isQuery(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES":
		return true
	}
	return false
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
