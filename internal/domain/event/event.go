package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to a task
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TaskID        int64                  `json:"task_id"`
	StaffID       int64                  `json:"staff_id"`
	TaskDate      string                 `json:"task_date,omitempty"`
	ActorID       *int64                 `json:"actor_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a task event with a fresh ID that starts its own correlation chain
func NewEvent(eventType Type, taskID, staffID int64, taskDate string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            id,
		Type:          eventType,
		TaskID:        taskID,
		StaffID:       staffID,
		TaskDate:      taskDate,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// Caused returns a follow-up event in the same correlation chain
func (e *Event) Caused(eventType Type, payload map[string]interface{}) *Event {
	next := NewEvent(eventType, e.TaskID, e.StaffID, e.TaskDate, payload)
	next.ActorID = e.ActorID
	next.CorrelationID = e.CorrelationID
	return next
}

// By records who triggered the event
func (e *Event) By(actorID *int64) *Event {
	e.ActorID = actorID
	return e
}

// WithPayload returns a copy of the event with one more payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
