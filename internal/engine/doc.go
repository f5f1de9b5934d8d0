// Package engine orchestrates one selection run.
//
// A run moves through a fixed state machine:
//
//	Idle → (Verifying) → Executing → Counting → Planning → Exporting → Cleanup → Done
//
// Requests rejected before execution (configuration, classification,
// verification) go straight from Idle or Verifying to Failed. Once the
// selection procedure has been entered, every path passes through Cleanup,
// which runs exactly once and whose failure never turns a successful run
// into a failed one. Every transition is written to the Run Log.
//
// The engine holds no state between runs. Temporary objects on the server
// are isolated by the caller token.
package engine
