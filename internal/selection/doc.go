// Package selection runs ad-hoc selections against the database through the
// server-side selection and clear procedures.
//
// A selection moves through four collaborators:
//   - Classifier: decides whether the result carries geometry
//   - Verifier: optionally runs a one-row trial of the assembled statement
//   - Executor: calls the selection procedure and checks its temporary objects
//   - Cleaner: calls the clear procedure to drop those objects
//
// # Temporary Objects
//
// The selection procedure materializes its result as either one flat table
// or a point/polygon pair. Names are a pure function of schema, base table
// and caller token (see TempNames); the token is the only isolation between
// concurrent callers.
//
// # Escaping
//
// Only the filter fragment is escaped (single quotes doubled) before it is
// handed to the procedure. Columns, group-by and order-by fragments are passed
// through untouched and remain an open injection risk.
package selection
