package workflow

import "fmt"

// State is a task's completion status. The stored values are part of the
// database schema and the HTTP API.
type State string

const (
	StateTodo       State = "todo"
	StateInProgress State = "in-progress"
	StateDone       State = "done"
)

var validStates = map[State]bool{
	StateTodo:       true,
	StateInProgress: true,
	StateDone:       true,
}

// ParseState converts a stored or requested value into a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

// IsTerminal reports whether the state counts as finished work.
func (s State) IsTerminal() bool {
	return s == StateDone
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the three task states
func (s State) IsValid() bool {
	return validStates[s]
}
