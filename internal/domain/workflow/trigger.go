package workflow

import "fmt"

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	// TriggerReset moves a task back to todo.
	TriggerReset Trigger = "RESET"
	// TriggerStart marks a task as in progress.
	TriggerStart Trigger = "START"
	// TriggerComplete marks a task as done. Guarded by the attachment gate.
	TriggerComplete Trigger = "COMPLETE"
	// TriggerAttachmentRemoved reopens a done task whose last required attachment was deleted.
	TriggerAttachmentRemoved Trigger = "ATTACHMENT_REMOVED"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor returns the trigger that moves a task into target.
func TriggerFor(target State) (Trigger, error) {
	switch target {
	case StateTodo:
		return TriggerReset, nil
	case StateInProgress:
		return TriggerStart, nil
	case StateDone:
		return TriggerComplete, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, target)
	}
}
