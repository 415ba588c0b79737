package chat

import (
	"fmt"
	"slices"
	"sync"
)

// State is the lifecycle state of a chat session controller.
type State string

const (
	Idle           State = "IDLE"
	Resolving      State = "RESOLVING"
	LoadingHistory State = "LOADING_HISTORY"
	Live           State = "LIVE"
	Error          State = "ERROR"
	Terminated     State = "TERMINATED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:           {Resolving, Terminated},
	Resolving:      {LoadingHistory, Error, Terminated},
	LoadingHistory: {Live, Error, Terminated},
	Live:           {Error, Terminated},
	Error:          {Idle, Terminated},
	Terminated:     {},
}

// StateChange describes one transition. Err is set when To is Error.
type StateChange struct {
	From State
	To   State
	Err  *ControllerError
}

// Machine tracks and enforces controller state transitions.
type Machine struct {
	mu       sync.RWMutex
	current  State
	err      *ControllerError
	onChange func(StateChange)
}

// NewMachine creates a state machine starting in Idle. onChange, if not nil,
// is called after every successful transition while the machine is locked.
func NewMachine(onChange func(StateChange)) *Machine {
	return &Machine{current: Idle, onChange: onChange}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Err returns the error held in the Error state, or nil.
func (m *Machine) Err() *ControllerError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Transition attempts to move to a new state. Moving to Error must go
// through Fail.
func (m *Machine) Transition(to State) error {
	if to == Error {
		return fmt.Errorf("transition to %s needs an error kind", Error)
	}
	return m.transition(to, nil)
}

// Fail moves to Error with the given kind and cause.
func (m *Machine) Fail(kind ErrorKind, cause error) error {
	return m.transition(Error, &ControllerError{Kind: kind, Err: cause})
}

func (m *Machine) transition(to State, cerr *ControllerError) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.err = cerr
	if m.onChange != nil {
		m.onChange(StateChange{From: from, To: to, Err: cerr})
	}
	return nil
}
