package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
)

// tenant is one organization with a member of every role.
type tenant struct {
	org    domain.Organization
	admin  domain.User
	agent  domain.User
	client domain.User
}

func (tn tenant) principal(u domain.User) domain.Principal {
	return domain.Principal{SubjectID: u.ID, Role: u.Role, OrganizationID: u.OrganizationID}
}

type fakeFiles struct {
	mu      sync.Mutex
	stored  []string
	removed []string
}

func (f *fakeFiles) Store(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, name)
	return "http://files.test/uploads/" + name, nil
}

func (f *fakeFiles) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

type fixture struct {
	repos      repository.Set
	tickets    *TicketService
	files      *fakeFiles
	dispatcher events.Dispatcher
	a, b       tenant
}

func newTenant(t *testing.T, repos repository.Set, name string) tenant {
	t.Helper()
	ctx := context.Background()
	tn := tenant{
		org:   domain.Organization{Name: name},
		admin: domain.User{Name: name + " Admin", Email: "admin@" + name + ".test", Role: domain.RoleAdmin},
	}
	if err := repos.Organizations.CreateWithAdmin(ctx, &tn.org, &tn.admin); err != nil {
		t.Fatalf("create org %s: %v", name, err)
	}
	tn.agent = domain.User{Name: name + " Agent", Email: "agent@" + name + ".test", Role: domain.RoleAgent, OrganizationID: tn.org.ID}
	tn.client = domain.User{Name: name + " Client", Email: "client@" + name + ".test", Role: domain.RoleClient, OrganizationID: tn.org.ID}
	for _, u := range []*domain.User{&tn.agent, &tn.client} {
		if err := repos.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.Email, err)
		}
	}
	return tn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo optionally wraps the ticket repository, for fault injection.
func newFixtureWithRepo(t *testing.T, wrap func(repository.TicketRepository) repository.TicketRepository) *fixture {
	t.Helper()
	repos := memory.NewSet()
	f := &fixture{repos: repos, files: &fakeFiles{}, dispatcher: events.NewInMemoryDispatcher()}
	f.a = newTenant(t, repos, "alpha")
	f.b = newTenant(t, repos, "beta")
	ticketRepo := repos.Tickets
	if wrap != nil {
		ticketRepo = wrap(ticketRepo)
	}
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   ticketRepo,
		UserRepo:     repos.Users,
		CommentRepo:  repos.Comments,
		Files:        f.files,
		Dispatcher:   f.dispatcher,
		MaxFiles:     3,
		MaxFileBytes: 16,
	})
	return f
}

func (f *fixture) createTicket(t *testing.T, tn tenant, title string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), tn.principal(tn.client), TicketDraft{
		Title:       title,
		Description: "details for " + title,
		Priority:    string(priority),
	}, nil)
	if err != nil {
		t.Fatalf("create ticket %q: %v", title, err)
	}
	return ticket
}

func newAuthFixture(t *testing.T, throttle auth.LoginThrottle) (*AuthService, repository.Set, *auth.TokenManager) {
	t.Helper()
	repos := memory.NewSet()
	tokens := auth.NewTokenManager("service-test-secret", time.Hour)
	svc, err := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		OrganizationRepo: repos.Organizations,
		UserRepo:         repos.Users,
		Tokens:           tokens,
		Throttle:         throttle,
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, repos, tokens
}
