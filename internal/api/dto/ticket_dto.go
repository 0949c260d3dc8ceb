package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest carries the non-file fields of a ticket; it binds from JSON or multipart form.
type CreateTicketRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
	DueDate     string `json:"due_date" form:"due_date"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CreatedTicketResponse is returned by ticket creation.
type CreatedTicketResponse struct {
	ID string `json:"id"`
}

// TicketResponse representation.
type TicketResponse struct {
	ID             string                `json:"id"`
	OrganizationID string                `json:"organization_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	ClientID       string                `json:"client_id"`
	AssignedToID   *string               `json:"assigned_to_id"`
	AssignedByID   *string               `json:"assigned_by_id"`
	DueDate        *time.Time            `json:"due_date"`
	PhotoPaths     []string              `json:"photo_paths"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketDetailResponse adds joined names and the comment thread.
type TicketDetailResponse struct {
	TicketResponse
	OrganizationName string            `json:"organization_name"`
	ClientName       string            `json:"client_name"`
	AssignedToName   *string           `json:"assigned_to_name"`
	AssignedByName   *string           `json:"assigned_by_name"`
	Comments         []CommentResponse `json:"comments"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	photos := t.PhotoPaths
	if photos == nil {
		photos = []string{}
	}
	return TicketResponse{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		ClientID:       t.ClientID,
		AssignedToID:   t.AssignedToID,
		AssignedByID:   t.AssignedByID,
		DueDate:        t.DueDate,
		PhotoPaths:     photos,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewTicketList maps a slice, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Body:       c.Body,
		CreatedAt:  c.CreatedAt,
	}
}

// NewTicketDetailResponse maps the joined view.
func NewTicketDetailResponse(d *domain.TicketDetail) TicketDetailResponse {
	comments := make([]CommentResponse, 0, len(d.Comments))
	for i := range d.Comments {
		comments = append(comments, NewCommentResponse(&d.Comments[i]))
	}
	return TicketDetailResponse{
		TicketResponse:   NewTicketResponse(&d.Ticket),
		OrganizationName: d.OrganizationName,
		ClientName:       d.ClientName,
		AssignedToName:   d.AssignedToName,
		AssignedByName:   d.AssignedByName,
		Comments:         comments,
	}
}
