package entity

import "fmt"

// Category classifies a task.
type Category string

const (
	CategoryJobdesk    Category = "Jobdesk"
	CategoryAdditional Category = "Tugas Tambahan"
	CategoryInitiative Category = "Inisiatif"
	CategoryRequest    Category = "Request"
)

// ParseCategory validates c, defaulting an empty value to Jobdesk.
func ParseCategory(c string) (Category, error) {
	switch Category(c) {
	case "":
		return CategoryJobdesk, nil
	case CategoryJobdesk, CategoryAdditional, CategoryInitiative, CategoryRequest:
		return Category(c), nil
	default:
		return "", fmt.Errorf("unknown category %q", c)
	}
}

// NotificationType is the kind shown on a notification.
type NotificationType string

const (
	NotificationInfo       NotificationType = "info"
	NotificationWarning    NotificationType = "warning"
	NotificationSuccess    NotificationType = "success"
	NotificationError      NotificationType = "error"
	NotificationDeadline   NotificationType = "deadline"
	NotificationTransition NotificationType = "transition"
	NotificationRequest    NotificationType = "request"
	NotificationMention    NotificationType = "mention"
	NotificationCompleted  NotificationType = "completed"
)

// Routine template defaults
const (
	DefaultTemplateStart    = "09:00:00"
	DefaultTemplateDuration = 1.0
)

// Attachment URL schemes accepted for task evidence
var AllowedAttachmentSchemes = []string{"http", "https", "ftp", "mailto", "file"}
