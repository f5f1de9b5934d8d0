// Package gateway implements the selection database gateway over
// database/sql.
//
// Two drivers are supported:
//   - sqlite3: local database files. SQLite has no stored procedures, so the
//     selection and clear procedures are emulated in Go and registered under
//     the configured names (see EmulatedProcedures).
//   - postgres: remote servers. Procedures are invoked with CALL, arguments
//     rendered inline as string literals the way the procedure contract
//     expects them.
//
// # Database Configuration (sqlite3)
//
//   - WAL mode: Concurrent reads during writes
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single open connection: one writer at a time
//
// Object names are "schema.object". Identifiers are always double-quoted
// when the gateway builds SQL itself; fragments supplied by the analyst are
// never rewritten here.
package gateway
