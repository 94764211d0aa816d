package workflow

import "context"

// Gate is the attachment requirement of a task, read inside the same
// transaction that writes the resulting status.
type Gate struct {
	Required    bool
	Attachments int
}

// Blocked reports whether the task may not be done yet.
func (g Gate) Blocked() bool {
	return g.Required && g.Attachments == 0
}

// Derive computes the status implied by checklist progress.
//
//	total == 0          -> current (no checklist, status is manual)
//	done == 0           -> todo
//	done < total        -> in-progress
//	done == total       -> done, or in-progress while the gate is blocked
func Derive(current State, done, total int, gate Gate) State {
	switch {
	case total <= 0:
		return current
	case done <= 0:
		return StateTodo
	case done < total:
		return StateInProgress
	case gate.Blocked():
		return StateInProgress
	default:
		return StateDone
	}
}

// NewTaskMachine returns the status machine for a single task.
//
// Any state may move to any other through its target trigger; only
// TriggerComplete is guarded, by the attachment gate. Checklist completeness
// is deliberately not a guard: manual status changes may mark a task done
// with open checklist items.
func NewTaskMachine(current State, gate Gate) StateMachine {
	gateOpen := func(context.Context) bool { return !gate.Blocked() }

	b := NewBuilder()
	for _, s := range []State{StateTodo, StateInProgress, StateDone} {
		b.Configure(s).
			Permit(TriggerReset, StateTodo).
			Permit(TriggerStart, StateInProgress).
			PermitIf(TriggerComplete, StateDone, gateOpen)
	}

	b.Configure(StateDone).
		PermitIf(TriggerAttachmentRemoved, StateInProgress, func(context.Context) bool {
			return gate.Blocked()
		})

	return b.Build(current)
}

// Transition moves current to target through the task machine.
func Transition(ctx context.Context, current, target State, gate Gate) (State, error) {
	trigger, err := TriggerFor(target)
	if err != nil {
		return current, err
	}

	m := NewTaskMachine(current, gate)
	if err := m.Fire(ctx, trigger); err != nil {
		return current, err
	}
	return m.State(), nil
}
