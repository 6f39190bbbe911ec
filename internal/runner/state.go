package runner

import (
	"fmt"
	"sync"
)

// State is the generation state of a turn.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateFinished || s == StateErrored }

var transitions = map[State][]State{
	StateIdle:      {StateStreaming, StateErrored},
	StateStreaming: {StateFinished, StateErrored},
}

// stateMachine guards State with the transition table.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
}
