package engine

import (
	"fmt"
	"slices"
	"sync"
)

// State - состояние автомата синхронизации.
type State string

const (
	StateIdle        State = "idle"
	StatePushing     State = "pushing"
	StateReconciling State = "reconciling"
	StatePulling     State = "pulling"
	StateError       State = "error"
)

var transitions = map[State][]State{
	StateIdle:        {StatePushing, StatePulling},
	StatePushing:     {StateReconciling, StateError},
	StateReconciling: {StatePulling, StateIdle, StateError},
	StatePulling:     {StateIdle, StateError},
	StateError:       {StateIdle},
}

// CanTransition проверяет, допустим ли переход from -> to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// machine хранит текущее состояние. Выход из Idle защищает от повторного входа.
type machine struct {
	mu    sync.Mutex
	state State
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

// begin начинает сессию в состоянии to и падает, если сессия уже идет.
func (m *machine) begin(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrSyncInProgress, m.state)
	}
	if !CanTransition(StateIdle, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, StateIdle, to)
	}
	m.state = to
	return nil
}

func (m *machine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	m.state = to
	return nil
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
