package domain

// StreamEventType identifies a progressive-mode event.
type StreamEventType string

const (
	EventStatus          StreamEventType = "status"
	EventDiagnosisResult StreamEventType = "diagnosis_result"
	EventPlanResult      StreamEventType = "plan_result"
)

// StreamEvent is one message written to a progressive-mode client.
// Status events carry their text under both "message" and "status" so
// clients keyed on either field work.
type StreamEvent struct {
	Type    StreamEventType `json:"type,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  string          `json:"status,omitempty"`
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StatusEvent creates a human-readable progress event.
func StatusEvent(message string) StreamEvent {
	return StreamEvent{Type: EventStatus, Message: message, Status: message}
}

// ResultEvent creates a typed result event.
func ResultEvent(t StreamEventType, data any) StreamEvent {
	return StreamEvent{Type: t, Data: data}
}

// ErrorEvent creates the terminal error event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Error: message}
}
