package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusAssigned TicketStatus = "ASSIGNED"
	TicketStatusResolved TicketStatus = "RESOLVED"
)

// ParseTicketStatus normalizes user input into a known status.
func ParseTicketStatus(val string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToUpper(strings.TrimSpace(val)))
	switch status {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusResolved:
		return status, true
	}
	return "", false
}

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityUrgent    TicketPriority = "URGENT"
	TicketPriorityImportant TicketPriority = "IMPORTANT"
	TicketPriorityMedium    TicketPriority = "MEDIUM"
	TicketPriorityLow       TicketPriority = "LOW"
)

// unknownPriorityRank places unrecognized priorities after LOW.
const unknownPriorityRank = 5

// Rank orders priorities from most urgent (1) to least urgent (4).
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityUrgent:
		return 1
	case TicketPriorityImportant:
		return 2
	case TicketPriorityMedium:
		return 3
	case TicketPriorityLow:
		return 4
	}
	return unknownPriorityRank
}

// ParseTicketPriority normalizes user input into a known priority.
func ParseTicketPriority(val string) (TicketPriority, bool) {
	priority := TicketPriority(strings.ToUpper(strings.TrimSpace(val)))
	if priority.Rank() == unknownPriorityRank {
		return "", false
	}
	return priority, true
}

// Ticket is the aggregate for support requests. AssignedToID and AssignedByID are
// either both nil (OPEN) or both set (ASSIGNED, RESOLVED).
type Ticket struct {
	ID             string
	OrganizationID string
	Title          string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	ClientID       string
	AssignedToID   *string
	AssignedByID   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DueDate        *time.Time
	PhotoPaths     []string
	Version        int64
}

// IsAssigned reports whether the ticket currently has an assignee.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedToID != nil
}

// TicketDetail is the joined read view of a ticket.
type TicketDetail struct {
	Ticket
	OrganizationName string
	ClientName       string
	AssignedToName   *string
	AssignedByName   *string
	Comments         []Comment
}

// ASSIGNED -> ASSIGNED is a re-assignment. ASSIGNED -> OPEN is reserved for unassignment.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:     {TicketStatusAssigned},
	TicketStatusAssigned: {TicketStatusAssigned, TicketStatusResolved, TicketStatusOpen},
	TicketStatusResolved: {},
}

// CanTransition reports whether the lifecycle permits moving from current to next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
