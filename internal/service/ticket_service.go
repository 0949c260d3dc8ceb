package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Attachment limits applied when none are configured.
const (
	DefaultMaxFiles     = 7
	DefaultMaxFileBytes = 5 << 20
)

// maxConflictAttempts bounds how often a locked update is tried before CONFLICT is returned.
const maxConflictAttempts = 2

// TicketService is the sole authority for ticket state transitions.
type TicketService struct {
	tickets      repository.TicketRepository
	users        repository.UserRepository
	comments     repository.CommentRepository
	files        storage.FileStore
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	maxFiles     int
	maxFileBytes int64
	now          func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	CommentRepo  repository.CommentRepository
	Files        storage.FileStore
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	MaxFiles     int
	MaxFileBytes int64
}

// TicketDraft describes the client-supplied part of a new ticket.
type TicketDraft struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

// Attachment is one uploaded file.
type Attachment struct {
	Name string
	Data []byte
}

// ListFilter narrows ticket listings. Nil fields match anything.
type ListFilter struct {
	Priority *domain.TicketPriority
	Status   *domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	maxFiles := deps.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	maxFileBytes := deps.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &TicketService{
		tickets:      deps.TicketRepo,
		users:        deps.UserRepo,
		comments:     deps.CommentRepo,
		files:        deps.Files,
		dispatcher:   dispatcher,
		logger:       logger,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
		now:          time.Now,
	}
}

// Create files a new OPEN ticket on behalf of a CLIENT in their own organization.
func (s *TicketService) Create(ctx context.Context, principal domain.Principal, draft TicketDraft, attachments []Attachment) (*domain.Ticket, error) {
	if principal.Role != domain.RoleClient {
		return nil, apperrors.NewForbidden("only CLIENT may create tickets")
	}

	title := strings.TrimSpace(draft.Title)
	description := strings.TrimSpace(draft.Description)
	fields := map[string]any{}
	if title == "" {
		fields["title"] = "required"
	}
	if description == "" {
		fields["description"] = "required"
	}
	priority := domain.TicketPriorityMedium
	if strings.TrimSpace(draft.Priority) != "" {
		parsed, ok := domain.ParseTicketPriority(draft.Priority)
		if !ok {
			fields["priority"] = "must be one of URGENT, IMPORTANT, MEDIUM, LOW"
		}
		priority = parsed
	}
	if len(attachments) > s.maxFiles {
		fields["photos"] = fmt.Sprintf("at most %d files allowed", s.maxFiles)
	}
	for _, attachment := range attachments {
		if int64(len(attachment.Data)) > s.maxFileBytes {
			fields["photos"] = fmt.Sprintf("%s exceeds %d bytes", attachment.Name, s.maxFileBytes)
			break
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", fields)
	}

	photoPaths := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		if s.files == nil {
			return nil, apperrors.NewInternalError(errors.New("file storage not configured"))
		}
		url, err := s.files.Store(ctx, attachment.Name, attachment.Data)
		if err != nil {
			s.discardFiles(ctx, photoPaths)
			return nil, apperrors.MapError(err)
		}
		photoPaths = append(photoPaths, url)
	}

	ticket := &domain.Ticket{
		OrganizationID: principal.OrganizationID,
		Title:          title,
		Description:    description,
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		ClientID:       principal.SubjectID,
		DueDate:        draft.DueDate,
		PhotoPaths:     photoPaths,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.discardFiles(ctx, photoPaths)
		return nil, mapRepoError(err, "ticket", nil)
	}

	s.publish(ctx, events.EventTicketCreated, principal, ticket, events.TicketCreatedPayload{
		Priority:    ticket.Priority,
		Attachments: len(photoPaths),
	})
	return ticket, nil
}

// discardFiles removes attachments stored for a ticket that was never persisted.
func (s *TicketService) discardFiles(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, url := range urls {
		if err := s.files.Remove(ctx, url); err != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("url", url), zap.Error(err))
		}
	}
}

// Assign points the ticket at assigneeID. Re-assigning an ASSIGNED ticket overwrites
// both assignment fields.
func (s *TicketService) Assign(ctx context.Context, principal domain.Principal, ticketID, assigneeID string) (*domain.Ticket, error) {
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only ADMIN or AGENT may assign tickets")
	}
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee_id required", map[string]any{"field": "assignee_id"})
	}

	// Organization and role are immutable, so the assignee is read before the row lock is
	// held. Its outcome is still reported after the ticket checks.
	assignee, lookupErr := s.users.GetByID(ctx, assigneeID)

	var payload events.TicketTransitionPayload
	assignedBy := principal.SubjectID
	updated, err := s.updateLocked(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.OrganizationID != principal.OrganizationID {
			return apperrors.NewForbidden("ticket belongs to another organization")
		}
		if lookupErr != nil {
			return mapRepoError(lookupErr, "assignee", map[string]any{"assignee_id": assigneeID})
		}
		if assignee.OrganizationID != ticket.OrganizationID {
			return apperrors.NewValidationError("assignee belongs to another organization", map[string]any{"assignee_id": assigneeID})
		}
		if !assignee.Role.IsStaff() {
			return apperrors.NewValidationError("assignee must be ADMIN or AGENT", map[string]any{"assignee_id": assigneeID})
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusAssigned) {
			return apperrors.NewInvalidStateTransition(string(ticket.Status), string(domain.TicketStatusAssigned))
		}

		payload = events.TicketTransitionPayload{
			OldStatus:          ticket.Status,
			NewStatus:          domain.TicketStatusAssigned,
			PreviousAssigneeID: ticket.AssignedToID,
			AssigneeID:         &assignee.ID,
		}
		ticket.AssignedToID = &assignee.ID
		ticket.AssignedByID = &assignedBy
		ticket.Status = domain.TicketStatusAssigned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTicketAssigned, principal, updated, payload)
	return updated, nil
}

// Resolve closes an ASSIGNED ticket. Only its assignee or an ADMIN of the organization may do so.
func (s *TicketService) Resolve(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only ADMIN or AGENT may resolve tickets")
	}

	var payload events.TicketTransitionPayload
	updated, err := s.updateLocked(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.OrganizationID != principal.OrganizationID {
			return apperrors.NewForbidden("ticket belongs to another organization")
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusResolved) {
			return apperrors.NewInvalidStateTransition(string(ticket.Status), string(domain.TicketStatusResolved))
		}
		isAssignee := ticket.AssignedToID != nil && *ticket.AssignedToID == principal.SubjectID
		if !isAssignee && principal.Role != domain.RoleAdmin {
			return apperrors.NewForbidden("only the assignee or an ADMIN may resolve this ticket")
		}

		payload = events.TicketTransitionPayload{
			OldStatus:  ticket.Status,
			NewStatus:  domain.TicketStatusResolved,
			AssigneeID: ticket.AssignedToID,
		}
		ticket.Status = domain.TicketStatusResolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTicketResolved, principal, updated, payload)
	return updated, nil
}

// updateLocked runs fn under the repository row lock, retrying once when a concurrent
// writer caused a conflict.
func (s *TicketService) updateLocked(ctx context.Context, ticketID string, fn repository.MutateFunc) (*domain.Ticket, error) {
	var err error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		var updated *domain.Ticket
		updated, err = s.tickets.UpdateLocked(ctx, ticketID, fn)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Warn("ticket update conflict",
			zap.String("ticket_id", ticketID),
			zap.Int("attempt", attempt))
	}
	return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
}

// ListUnassigned returns the organization's tickets in status with no assignee, oldest first.
func (s *TicketService) ListUnassigned(ctx context.Context, principal domain.Principal, status domain.TicketStatus) ([]domain.Ticket, error) {
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only ADMIN or AGENT may view the triage queue")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		OrganizationID: principal.OrganizationID,
		Status:         &status,
		Unassigned:     true,
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", nil)
	}
	return tickets, nil
}

// ListByFilter returns the organization's tickets matching filter. A CLIENT only sees
// tickets they filed.
func (s *TicketService) ListByFilter(ctx context.Context, principal domain.Principal, filter ListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		OrganizationID: principal.OrganizationID,
		Priority:       filter.Priority,
		Status:         filter.Status,
	}
	if principal.Role == domain.RoleClient {
		clientID := principal.SubjectID
		repoFilter.ClientID = &clientID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, mapRepoError(err, "ticket", nil)
	}
	return tickets, nil
}

// Rank orders the ListByFilter result by priority.
func (s *TicketService) Rank(ctx context.Context, principal domain.Principal, filter ListFilter, direction SortDirection) ([]domain.Ticket, error) {
	tickets, err := s.ListByFilter(ctx, principal, filter)
	if err != nil {
		return nil, err
	}
	return RankByPriority(tickets, direction), nil
}

// GetTicket returns the joined view of a ticket with its comments.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*domain.TicketDetail, error) {
	detail, err := s.tickets.GetDetail(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := canView(principal, &detail.Ticket); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "comment", nil)
	}
	detail.Comments = comments
	return detail, nil
}

// AddComment appends a comment to a ticket the principal can see.
func (s *TicketService) AddComment(ctx context.Context, principal domain.Principal, ticketID, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", map[string]any{"field": "body"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := canView(principal, ticket); err != nil {
		return nil, err
	}

	comment := &domain.Comment{TicketID: ticket.ID, AuthorID: principal.SubjectID, Body: body}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, mapRepoError(err, "comment", nil)
	}
	s.publish(ctx, events.EventCommentAdded, principal, ticket, events.CommentAddedPayload{CommentID: comment.ID})
	return comment, nil
}

func canView(principal domain.Principal, ticket *domain.Ticket) error {
	if ticket.OrganizationID != principal.OrganizationID {
		return apperrors.NewForbidden("ticket belongs to another organization")
	}
	if principal.Role == domain.RoleClient && ticket.ClientID != principal.SubjectID {
		return apperrors.NewForbidden("clients may only access their own tickets")
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, principal domain.Principal, ticket *domain.Ticket, payload any) {
	err := s.dispatcher.Publish(ctx, events.Event{
		Type:           eventType,
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		Actor:          events.Actor{UserID: principal.SubjectID, Role: principal.Role},
		Timestamp:      s.now().UTC(),
		Payload:        payload,
	})
	if err != nil {
		s.logger.Warn("lifecycle subscriber failed",
			zap.String("event", string(eventType)),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}
