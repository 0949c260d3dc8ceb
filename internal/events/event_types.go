package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketAssigned EventType = "ticket_assigned"
	EventTicketResolved EventType = "ticket_resolved"
	EventCommentAdded   EventType = "ticket_comment_added"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a lifecycle event emitted after a successful mutation.
type Event struct {
	Type           EventType   `json:"type"`
	TicketID       string      `json:"ticket_id"`
	OrganizationID string      `json:"organization_id"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority    domain.TicketPriority `json:"priority"`
	Attachments int                   `json:"attachments"`
}

// TicketTransitionPayload is carried by assigned and resolved events.
type TicketTransitionPayload struct {
	OldStatus          domain.TicketStatus `json:"old_status"`
	NewStatus          domain.TicketStatus `json:"new_status"`
	PreviousAssigneeID *string             `json:"previous_assignee_id,omitempty"`
	AssigneeID         *string             `json:"assignee_id,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID string `json:"comment_id"`
}
