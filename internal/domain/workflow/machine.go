package workflow

import (
	"context"
	"fmt"
)

// StateMachine tracks one task's current status and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether trigger would succeed now, guards included
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the trigger, moving to the first permitted target
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	table   map[State]map[Trigger][]transition
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.resolve(ctx, trigger)
	return err == nil
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, err := m.resolve(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.current]))
	for trigger := range m.table[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// resolve finds the target state without mutating the machine.
func (m *stateMachine) resolve(ctx context.Context, trigger Trigger) (State, error) {
	transitions := m.table[m.current][trigger]
	if len(transitions) == 0 {
		return "", fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, nil
		}
	}

	return "", fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}
