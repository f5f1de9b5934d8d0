// Package store provides the SQLite-backed structured store container that
// export targets write tables into.
//
// A container is a single SQLite file whose name ends with the store marker
// (".gdb" by default). Each exported object is a table named after the last
// path element. The container also holds an _outputs catalog recording
// which run wrote which object, from which temporary source, with how many
// rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema changes are tracked with PRAGMA user_version.
package store
