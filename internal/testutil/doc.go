// Package testutil provides deterministic fakes for tests: an in-memory
// selection gateway, a scripted prompter, a memory run log and fixed clocks
// and identifiers.
//
// Packages under test that testutil imports (selection) must use external
// _test packages to avoid import cycles.
package testutil
