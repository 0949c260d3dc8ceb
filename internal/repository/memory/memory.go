// Package memory provides in-process repository implementations used when no
// database is configured and in tests. Each store guards its own state.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// NewSet returns a fresh, empty set of in-memory repositories.
func NewSet() repository.Set {
	orgs := &OrganizationStore{byID: map[string]domain.Organization{}}
	users := &UserStore{byID: map[string]domain.User{}, byEmail: map[string]string{}}
	orgs.users = users
	return repository.Set{
		Organizations: orgs,
		Users:         users,
		Tickets:       &TicketStore{byID: map[string]*domain.Ticket{}, orgs: orgs, users: users},
		Comments:      &CommentStore{users: users},
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// OrganizationStore keeps organizations in a map.
type OrganizationStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Organization
	users *UserStore
}

func (s *OrganizationStore) CreateWithAdmin(ctx context.Context, org *domain.Organization, admin *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	if _, taken := s.users.byEmail[strings.ToLower(admin.Email)]; taken {
		return repository.ErrDuplicate
	}

	s.mu.Lock()
	org.ID = uuid.NewString()
	org.CreatedAt = now()
	s.byID[org.ID] = *org
	s.mu.Unlock()

	admin.OrganizationID = org.ID
	s.users.insertLocked(admin)
	return nil
}

func (s *OrganizationStore) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &org, nil
}

// UserStore keeps users indexed by id and lowercased email.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[strings.ToLower(user.Email)]; taken {
		return repository.ErrDuplicate
	}
	s.insertLocked(user)
	return nil
}

func (s *UserStore) insertLocked(user *domain.User) {
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now()
	s.byID[user.ID] = *user
	s.byEmail[user.Email] = user.ID
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := s.byID[id]
	return &user, nil
}

func (s *UserStore) name(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	return user.Name, ok
}

// TicketStore keeps tickets in insertion order. UpdateLocked holds the store lock
// for the whole read-modify-write.
type TicketStore struct {
	mu    sync.Mutex
	byID  map[string]*domain.Ticket
	order []string
	orgs  *OrganizationStore
	users *UserStore
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.PhotoPaths = slices.Clone(t.PhotoPaths)
	if c.PhotoPaths == nil {
		c.PhotoPaths = []string{}
	}
	return &c
}

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now()
	ticket.UpdatedAt = ticket.CreatedAt
	ticket.Version = 1
	if ticket.PhotoPaths == nil {
		ticket.PhotoPaths = []string{}
	}
	s.byID[ticket.ID] = cloneTicket(ticket)
	s.order = append(s.order, ticket.ID)
	return nil
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *TicketStore) GetDetail(ctx context.Context, id string) (*domain.TicketDetail, error) {
	ticket, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &domain.TicketDetail{Ticket: *ticket}
	if org, err := s.orgs.GetByID(ctx, ticket.OrganizationID); err == nil {
		detail.OrganizationName = org.Name
	}
	detail.ClientName, _ = s.users.name(ticket.ClientID)
	detail.AssignedToName = s.optionalName(ticket.AssignedToID)
	detail.AssignedByName = s.optionalName(ticket.AssignedByID)
	return detail, nil
}

func (s *TicketStore) optionalName(id *string) *string {
	if id == nil {
		return nil
	}
	name, ok := s.users.name(*id)
	if !ok {
		return nil
	}
	return &name
}

func (s *TicketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Ticket{}
	for _, id := range s.order {
		ticket := s.byID[id]
		if !matches(ticket, filter) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	switch {
	case t.OrganizationID != f.OrganizationID:
		return false
	case f.ClientID != nil && t.ClientID != *f.ClientID:
		return false
	case f.Status != nil && t.Status != *f.Status:
		return false
	case f.Priority != nil && t.Priority != *f.Priority:
		return false
	case f.Unassigned && t.AssignedToID != nil:
		return false
	}
	return true
}

func (s *TicketStore) UpdateLocked(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	working := cloneTicket(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.Version = current.Version + 1
	working.UpdatedAt = now()
	s.byID[id] = cloneTicket(working)
	return working, nil
}

// CommentStore keeps comments in insertion order.
type CommentStore struct {
	mu       sync.RWMutex
	comments []domain.Comment
	users    *UserStore
}

func (s *CommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := s.users.name(comment.AuthorID)
	if !ok {
		return repository.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = uuid.NewString()
	comment.CreatedAt = now()
	comment.AuthorName = name
	s.comments = append(s.comments, *comment)
	return nil
}

func (s *CommentStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.Comment{}
	for _, comment := range s.comments {
		if comment.TicketID == ticketID {
			if name, ok := s.users.name(comment.AuthorID); ok {
				comment.AuthorName = name
			}
			result = append(result, comment)
		}
	}
	return result, nil
}
