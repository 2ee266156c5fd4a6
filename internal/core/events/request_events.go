package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestSubmitted = "request.submitted"
	EventTypeRequestSigned    = "request.signed"
	EventTypeRequestApproved  = "request.approved"
	EventTypeRequestRejected  = "request.rejected"
	EventTypeRequestReturned  = "request.returned"
	EventTypeRequestCancelled = "request.cancelled"
	EventTypeRequestCompleted = "request.completed"
	EventTypeRequestAssigned  = "request.assigned"
)

// RequestEventTypes lists every request lifecycle event.
func RequestEventTypes() []string {
	return []string{
		EventTypeRequestSubmitted,
		EventTypeRequestSigned,
		EventTypeRequestApproved,
		EventTypeRequestRejected,
		EventTypeRequestReturned,
		EventTypeRequestCancelled,
		EventTypeRequestCompleted,
		EventTypeRequestAssigned,
	}
}

// Recipients addresses a notification either to pinned users or to a role
// pool, optionally scoped to one department.
type Recipients struct {
	UserIDs      []string `json:"user_ids,omitempty"`
	Role         string   `json:"role,omitempty"`
	DepartmentID string   `json:"department_id,omitempty"`
}

func (r Recipients) Empty() bool {
	return len(r.UserIDs) == 0 && r.Role == ""
}

// RequestEvent is published after a request transition commits.
type RequestEvent struct {
	BaseEvent
	RequestID      string     `json:"request_id"`
	RequestNumber  string     `json:"request_number"`
	ActorID        string     `json:"actor_id"`
	ActorRole      string     `json:"actor_role"`
	PreviousStatus string     `json:"previous_status"`
	NewStatus      string     `json:"new_status"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Recipients     Recipients `json:"recipients"`
}

func NewRequestEvent(eventType, requestID, requestNumber string) *RequestEvent {
	return &RequestEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":     requestID,
				"request_number": requestNumber,
			},
		},
		RequestID:     requestID,
		RequestNumber: requestNumber,
	}
}

func (e *RequestEvent) Payload() interface{} {
	return e
}
