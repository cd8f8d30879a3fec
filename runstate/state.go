// Package runstate provides the state machine definition for stream consumption runs.
//
// A run is one pass of the stream consumer over an agent event stream. Each
// run starts idle, streams while events arrive, and ends in exactly one
// terminal state.
//
// State machine:
//
//	idle -> streaming        (consumer starts reading the stream)
//	streaming -> finished    (stream closed with no error or abort event)
//	streaming -> errored     (error event, or the stream itself failed)
//	streaming -> aborted     (abort event)
//
// Terminal states (finished, errored, aborted) cannot transition further.
package runstate

import (
	"database/sql/driver"
	"fmt"
)

// RunState represents the current state of a consumer run.
type RunState string

const (
	// RunStateIdle indicates the run has been created but nothing was consumed yet.
	RunStateIdle RunState = "idle"

	// RunStateStreaming indicates the consumer is reading events.
	RunStateStreaming RunState = "streaming"

	// RunStateFinished indicates the stream ended normally.
	RunStateFinished RunState = "finished"

	// RunStateErrored indicates an error event was seen or the stream failed.
	RunStateErrored RunState = "errored"

	// RunStateAborted indicates the producer reported a cancellation.
	RunStateAborted RunState = "aborted"
)

// AllStates returns all possible run states.
func AllStates() []RunState {
	return []RunState{
		RunStateIdle,
		RunStateStreaming,
		RunStateFinished,
		RunStateErrored,
		RunStateAborted,
	}
}

// TerminalStates returns all terminal (final) states.
func TerminalStates() []RunState {
	return []RunState{
		RunStateFinished,
		RunStateErrored,
		RunStateAborted,
	}
}

// IsValid returns true if the state is a valid RunState value.
func (s RunState) IsValid() bool {
	switch s {
	case RunStateIdle, RunStateStreaming, RunStateFinished, RunStateErrored, RunStateAborted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state is a terminal (final) state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateFinished, RunStateErrored, RunStateAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if a transition from this state to the
// target state is valid.
func (s RunState) CanTransitionTo(target RunState) bool {
	switch s {
	case RunStateIdle:
		return target == RunStateStreaming
	case RunStateStreaming:
		return target.IsTerminal()
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s RunState) String() string {
	return string(s)
}

// Value implements driver.Valuer for database serialization.
func (s RunState) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for database deserialization.
func (s *RunState) Scan(src any) error {
	var v string
	switch src := src.(type) {
	case string:
		v = src
	case []byte:
		v = string(src)
	default:
		return fmt.Errorf("runstate: cannot scan type %T into RunState", src)
	}

	state := RunState(v)
	if !state.IsValid() {
		return fmt.Errorf("runstate: invalid state %q", v)
	}
	*s = state
	return nil
}

// Transition represents a state transition with validation.
type Transition struct {
	From RunState
	To   RunState
}

// Validate returns an error if the transition is invalid.
func (t Transition) Validate() error {
	if !t.From.IsValid() {
		return fmt.Errorf("runstate: invalid source state %q", t.From)
	}
	if !t.To.IsValid() {
		return fmt.Errorf("runstate: invalid target state %q", t.To)
	}
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("runstate: invalid transition from %q to %q", t.From, t.To)
	}
	return nil
}

// ValidTransitions returns all valid state transitions.
func ValidTransitions() []Transition {
	return []Transition{
		{From: RunStateIdle, To: RunStateStreaming},
		{From: RunStateStreaming, To: RunStateFinished},
		{From: RunStateStreaming, To: RunStateErrored},
		{From: RunStateStreaming, To: RunStateAborted},
	}
}

// Machine tracks a single run's state and rejects invalid transitions.
// It is not safe for concurrent use; a run is owned by one consumer.
type Machine struct {
	state RunState
}

// NewMachine returns a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: RunStateIdle}
}

// State returns the current state.
func (m *Machine) State() RunState {
	return m.state
}

// TransitionTo moves the machine to target, or returns an error and leaves
// the state unchanged.
func (m *Machine) TransitionTo(target RunState) error {
	if err := (Transition{From: m.state, To: target}).Validate(); err != nil {
		return err
	}
	m.state = target
	return nil
}
