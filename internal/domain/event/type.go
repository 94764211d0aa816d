package event

// Type identifies the type of domain event
type Type string

const (
	TypeTaskCreated       Type = "task.created"
	TypeTaskMaterialized  Type = "task.materialized"
	TypeStatusChanged     Type = "task.status_changed"
	TypeTaskCompleted     Type = "task.completed"
	TypeChecklistToggled  Type = "checklist.toggled"
	TypeAttachmentAdded   Type = "attachment.added"
	TypeAttachmentDeleted Type = "attachment.deleted"

	// TypeNotificationCreated is raised once a notification row has committed.
	// StaffID carries the recipient.
	TypeNotificationCreated Type = "notification.created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskCreated,
		TypeTaskMaterialized,
		TypeStatusChanged,
		TypeTaskCompleted,
		TypeChecklistToggled,
		TypeAttachmentAdded,
		TypeAttachmentDeleted,
		TypeNotificationCreated:
		return true
	default:
		return false
	}
}
