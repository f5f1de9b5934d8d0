package engine

import (
	"fmt"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/runlog"
)

// State is a run's position in the state machine.
type State string

const (
	StateIdle      State = "Idle"
	StateVerifying State = "Verifying"
	StateExecuting State = "Executing"
	StateCounting  State = "Counting"
	StatePlanning  State = "Planning"
	StateExporting State = "Exporting"
	StateCleanup   State = "Cleanup"
	StateDone      State = "Done"
	StateFailed    State = "Failed"
)

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateIdle:      {StateVerifying, StateExecuting, StateFailed},
	StateVerifying: {StateExecuting, StateFailed},
	StateExecuting: {StateCounting, StateCleanup},
	StateCounting:  {StatePlanning, StateCleanup},
	StatePlanning:  {StateExporting, StateCleanup},
	StateExporting: {StateCleanup},
	StateCleanup:   {StateDone, StateFailed},
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// machine tracks one run's state and writes every transition to the log.
type machine struct {
	current State
	history []State
	log     runlog.Appender
}

func newMachine(log runlog.Appender) *machine {
	return &machine{current: StateIdle, history: []State{StateIdle}, log: log}
}

// to moves to next. An illegal transition is a programming error.
func (m *machine) to(next State) {
	if !CanTransition(m.current, next) {
		panic(fmt.Sprintf("engine: illegal transition %s -> %s", m.current, next))
	}
	m.current = next
	m.history = append(m.history, next)
	_ = m.log.Append("Stage: " + string(next))
}
