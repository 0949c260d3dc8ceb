package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func assertKind(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsKind(err, code) {
		t.Fatalf("error = %v, want %s", err, code)
	}
}

func TestCreate_OnlyClients(t *testing.T) {
	f := newFixture(t)
	draft := TicketDraft{Title: "Printer", Description: "jammed"}
	for _, u := range []domain.User{f.a.admin, f.a.agent} {
		_, err := f.tickets.Create(context.Background(), f.a.principal(u), draft, nil)
		assertKind(t, err, apperrors.CodeForbidden)
	}
}

func TestCreate_SetsOwnershipAndDefaults(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	ticket, err := f.tickets.Create(context.Background(), f.a.principal(f.a.client), TicketDraft{
		Title:       "  VPN down ",
		Description: "cannot connect",
		DueDate:     &due,
	}, []Attachment{{Name: "a.png", Data: []byte("x")}, {Name: "b.png", Data: []byte("y")}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.OrganizationID != f.a.org.ID || ticket.ClientID != f.a.client.ID {
		t.Errorf("ownership = (%s, %s)", ticket.OrganizationID, ticket.ClientID)
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.IsAssigned() || ticket.AssignedByID != nil {
		t.Errorf("new ticket must be OPEN and unassigned: %+v", ticket)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", ticket.Priority)
	}
	if ticket.Title != "VPN down" {
		t.Errorf("title not trimmed: %q", ticket.Title)
	}
	if len(ticket.PhotoPaths) != 2 || ticket.PhotoPaths[0] != "http://files.test/uploads/a.png" {
		t.Errorf("photo paths = %v", ticket.PhotoPaths)
	}
	if ticket.DueDate == nil || !ticket.DueDate.Equal(due) {
		t.Errorf("due date = %v", ticket.DueDate)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	client := f.a.principal(f.a.client)
	cases := map[string]struct {
		draft       TicketDraft
		attachments []Attachment
	}{
		"missing title":       {TicketDraft{Description: "d"}, nil},
		"missing description": {TicketDraft{Title: "t", Description: "   "}, nil},
		"unknown priority":    {TicketDraft{Title: "t", Description: "d", Priority: "ASAP"}, nil},
		"too many files":      {TicketDraft{Title: "t", Description: "d"}, make([]Attachment, 4)},
		"file too large":      {TicketDraft{Title: "t", Description: "d"}, []Attachment{{Name: "big", Data: make([]byte, 17)}}},
	}
	for name, tc := range cases {
		_, err := f.tickets.Create(context.Background(), client, tc.draft, tc.attachments)
		if !apperrors.IsKind(err, apperrors.CodeValidation) {
			t.Errorf("%s: error = %v, want validation", name, err)
		}
	}
	if len(f.files.stored) != 0 {
		t.Errorf("files stored despite validation failures: %v", f.files.stored)
	}
}

func TestAssign_Success(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.a, "t1", domain.TicketPriorityLow)

	for _, actor := range []domain.User{f.a.agent, f.a.admin} {
		updated, err := f.tickets.Assign(context.Background(), f.a.principal(actor), ticket.ID, f.a.agent.ID)
		if err != nil {
			t.Fatalf("Assign by %s: %v", actor.Role, err)
		}
		if updated.Status != domain.TicketStatusAssigned {
			t.Errorf("status = %s", updated.Status)
		}

		reloaded, err := f.repos.Tickets.GetByID(context.Background(), ticket.ID)
		if err != nil {
			t.Fatal(err)
		}
		if reloaded.Status != domain.TicketStatusAssigned || reloaded.AssignedToID == nil || *reloaded.AssignedToID != f.a.agent.ID {
			t.Errorf("reloaded = %+v", reloaded)
		}
		if reloaded.AssignedByID == nil || *reloaded.AssignedByID != actor.ID {
			t.Errorf("assigned by = %v, want %s", reloaded.AssignedByID, actor.ID)
		}
	}
}

func TestAssign_ReassignmentOverwrites(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.a, "t1", domain.TicketPriorityLow)
	ctx := context.Background()
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.agent), ticket.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}
	updated, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), ticket.ID, f.a.admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *updated.AssignedToID != f.a.admin.ID || *updated.AssignedByID != f.a.admin.ID {
		t.Errorf("reassignment did not overwrite: %+v", updated)
	}
}

func TestAssign_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.a, "t1", domain.TicketPriorityLow)

	cases := []struct {
		name      string
		principal domain.Principal
		ticketID  string
		assignee  string
		code      string
	}{
		{"client", f.a.principal(f.a.client), ticket.ID, f.a.agent.ID, apperrors.CodeForbidden},
		{"missing ticket", f.a.principal(f.a.admin), "nope", f.a.agent.ID, apperrors.CodeNotFound},
		{"other organization", f.b.principal(f.b.admin), ticket.ID, f.b.agent.ID, apperrors.CodeForbidden},
		{"missing assignee", f.a.principal(f.a.admin), ticket.ID, "ghost", apperrors.CodeNotFound},
		{"cross-org assignee", f.a.principal(f.a.admin), ticket.ID, f.b.agent.ID, apperrors.CodeValidation},
		{"client assignee", f.a.principal(f.a.admin), ticket.ID, f.a.client.ID, apperrors.CodeValidation},
		{"empty assignee", f.a.principal(f.a.admin), ticket.ID, "", apperrors.CodeValidation},
	}
	for _, tc := range cases {
		_, err := f.tickets.Assign(ctx, tc.principal, tc.ticketID, tc.assignee)
		if !apperrors.IsKind(err, tc.code) {
			t.Errorf("%s: error = %v, want %s", tc.name, err, tc.code)
		}
	}

	stored, _ := f.repos.Tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusOpen || stored.AssignedToID != nil || stored.AssignedByID != nil || stored.Version != ticket.Version {
		t.Errorf("failed assignments modified the ticket: %+v", stored)
	}
}

func TestAssign_ResolvedTicketIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.a, "t1", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Resolve(ctx, f.a.principal(f.a.agent), ticket.ID); err != nil {
		t.Fatal(err)
	}
	for _, actor := range []domain.User{f.a.admin, f.a.agent} {
		_, err := f.tickets.Assign(ctx, f.a.principal(actor), ticket.ID, f.a.admin.ID)
		assertKind(t, err, apperrors.CodeInvalidStateTransition)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.createTicket(t, f.a, "open", domain.TicketPriorityLow)
	_, err := f.tickets.Resolve(ctx, f.a.principal(f.a.admin), open.ID)
	assertKind(t, err, apperrors.CodeInvalidStateTransition)

	assigned := f.createTicket(t, f.a, "assigned", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), assigned.ID, f.a.admin.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.tickets.Resolve(ctx, f.a.principal(f.a.agent), assigned.ID)
	assertKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.Resolve(ctx, f.b.principal(f.b.admin), assigned.ID)
	assertKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.Resolve(ctx, f.a.principal(f.a.client), assigned.ID)
	assertKind(t, err, apperrors.CodeForbidden)

	resolved, err := f.tickets.Resolve(ctx, f.a.principal(f.a.admin), assigned.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != domain.TicketStatusResolved || resolved.AssignedToID == nil || resolved.AssignedByID == nil {
		t.Errorf("resolved ticket = %+v", resolved)
	}
	_, err = f.tickets.Resolve(ctx, f.a.principal(f.a.admin), assigned.ID)
	assertKind(t, err, apperrors.CodeInvalidStateTransition)

	byAssignee := f.createTicket(t, f.a, "by assignee", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), byAssignee.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Resolve(ctx, f.a.principal(f.a.agent), byAssignee.ID); err != nil {
		t.Errorf("assignee should be able to resolve: %v", err)
	}
}

func TestListUnassigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createTicket(t, f.a, "first", domain.TicketPriorityLow)
	second := f.createTicket(t, f.a, "second", domain.TicketPriorityUrgent)
	third := f.createTicket(t, f.a, "third", domain.TicketPriorityMedium)
	f.createTicket(t, f.b, "other org", domain.TicketPriorityUrgent)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), second.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}

	queue, err := f.tickets.ListUnassigned(ctx, f.a.principal(f.a.agent), domain.TicketStatusOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 2 || queue[0].ID != first.ID || queue[1].ID != third.ID {
		t.Fatalf("queue = %+v", queue)
	}
	for _, ticket := range queue {
		if ticket.AssignedToID != nil {
			t.Errorf("unassigned queue returned assigned ticket %s", ticket.ID)
		}
	}

	assignedQueue, err := f.tickets.ListUnassigned(ctx, f.a.principal(f.a.agent), domain.TicketStatusAssigned)
	if err != nil || len(assignedQueue) != 0 {
		t.Errorf("ASSIGNED queue = %v, %v", assignedQueue, err)
	}

	_, err = f.tickets.ListUnassigned(ctx, f.a.principal(f.a.client), domain.TicketStatusOpen)
	assertKind(t, err, apperrors.CodeForbidden)
}

func TestListByFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createTicket(t, f.a, "low", domain.TicketPriorityLow)
	urgent := f.createTicket(t, f.a, "urgent", domain.TicketPriorityUrgent)
	f.createTicket(t, f.b, "beta", domain.TicketPriorityUrgent)

	otherClient := domain.User{Name: "Other", Email: "other@alpha.test", Role: domain.RoleClient, OrganizationID: f.a.org.ID}
	if err := f.repos.Users.Create(ctx, &otherClient); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Create(ctx, f.a.principal(otherClient), TicketDraft{Title: "mine", Description: "d"}, nil); err != nil {
		t.Fatal(err)
	}

	all, err := f.tickets.ListByFilter(ctx, f.a.principal(f.a.agent), ListFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("staff list = %d tickets, %v; want 3", len(all), err)
	}

	own, err := f.tickets.ListByFilter(ctx, f.a.principal(f.a.client), ListFilter{})
	if err != nil || len(own) != 2 {
		t.Fatalf("client list = %d tickets, %v; want 2", len(own), err)
	}

	p := domain.TicketPriorityUrgent
	filtered, _ := f.tickets.ListByFilter(ctx, f.a.principal(f.a.admin), ListFilter{Priority: &p})
	if len(filtered) != 1 || filtered[0].ID != urgent.ID {
		t.Errorf("priority filter = %+v", filtered)
	}

	s := domain.TicketStatusResolved
	none, _ := f.tickets.ListByFilter(ctx, f.a.principal(f.a.admin), ListFilter{Status: &s})
	if len(none) != 0 {
		t.Errorf("status filter = %+v", none)
	}
}

func TestRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := f.createTicket(t, f.a, "low", domain.TicketPriorityLow)
	urgent := f.createTicket(t, f.a, "urgent", domain.TicketPriorityUrgent)
	medium := f.createTicket(t, f.a, "medium", domain.TicketPriorityMedium)

	asc, err := f.tickets.Rank(ctx, f.a.principal(f.a.agent), ListFilter{}, SortAscending)
	if err != nil {
		t.Fatal(err)
	}
	desc, err := f.tickets.Rank(ctx, f.a.principal(f.a.agent), ListFilter{}, SortDescending)
	if err != nil {
		t.Fatal(err)
	}
	wantAsc := []string{urgent.ID, medium.ID, low.ID}
	for i, id := range wantAsc {
		if asc[i].ID != id {
			t.Errorf("asc[%d] = %s, want %s", i, asc[i].Title, id)
		}
		if desc[len(desc)-1-i].ID != id {
			t.Errorf("desc is not the exact reverse at %d", i)
		}
	}
}

func TestGetTicketAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.a, "t1", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.AddComment(ctx, f.a.principal(f.a.agent), ticket.ID, "looking into it"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.AddComment(ctx, f.a.principal(f.a.client), ticket.ID, "thanks"); err != nil {
		t.Fatal(err)
	}
	_, err := f.tickets.AddComment(ctx, f.a.principal(f.a.client), ticket.ID, "   ")
	assertKind(t, err, apperrors.CodeValidation)

	detail, err := f.tickets.GetTicket(ctx, f.a.principal(f.a.client), ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.OrganizationName != "alpha" || detail.ClientName != "alpha Client" {
		t.Errorf("names = %q / %q", detail.OrganizationName, detail.ClientName)
	}
	if detail.AssignedToName == nil || *detail.AssignedToName != "alpha Agent" || detail.AssignedByName == nil || *detail.AssignedByName != "alpha Admin" {
		t.Errorf("assignment names = %v / %v", detail.AssignedToName, detail.AssignedByName)
	}
	if len(detail.Comments) != 2 || detail.Comments[0].AuthorName != "alpha Agent" || detail.Comments[1].Body != "thanks" {
		t.Errorf("comments = %+v", detail.Comments)
	}

	otherClient := domain.User{Name: "Other", Email: "other@alpha.test", Role: domain.RoleClient, OrganizationID: f.a.org.ID}
	if err := f.repos.Users.Create(ctx, &otherClient); err != nil {
		t.Fatal(err)
	}
	_, err = f.tickets.GetTicket(ctx, f.a.principal(otherClient), ticket.ID)
	assertKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.GetTicket(ctx, f.b.principal(f.b.admin), ticket.ID)
	assertKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.AddComment(ctx, f.b.principal(f.b.agent), ticket.ID, "hi")
	assertKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.GetTicket(ctx, f.a.principal(f.a.admin), "missing")
	assertKind(t, err, apperrors.CodeNotFound)
}

func TestAssign_ConcurrentCallsStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.a, "race", domain.TicketPriorityUrgent)

	candidates := []domain.User{f.a.agent, f.a.admin}
	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := candidates[i%2]
			assignee := candidates[(i+1)%2]
			_, err := f.tickets.Assign(ctx, f.a.principal(actor), ticket.ID, assignee.ID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent assign failed: %v", err)
		}
	}

	stored, _ := f.repos.Tickets.GetByID(ctx, ticket.ID)
	if stored.Version != ticket.Version+workers {
		t.Errorf("version = %d, want %d", stored.Version, ticket.Version+workers)
	}
	// The assigner and assignee always come from the same call.
	if stored.AssignedToID == nil || stored.AssignedByID == nil || *stored.AssignedToID == *stored.AssignedByID {
		t.Errorf("inconsistent assignment pair: to=%v by=%v", stored.AssignedToID, stored.AssignedByID)
	}
}

// conflictingRepo fails the first n locked updates with ErrConflict.
type conflictingRepo struct {
	repository.TicketRepository
	remaining atomic.Int32
}

func (r *conflictingRepo) UpdateLocked(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Ticket, error) {
	if r.remaining.Add(-1) >= 0 {
		return nil, repository.ErrConflict
	}
	return r.TicketRepository.UpdateLocked(ctx, id, fn)
}

func TestAssign_RetriesConflictOnce(t *testing.T) {
	for _, tc := range []struct {
		conflicts int32
		wantErr   bool
	}{{1, false}, {2, true}} {
		var repo *conflictingRepo
		f := newFixtureWithRepo(t, func(inner repository.TicketRepository) repository.TicketRepository {
			repo = &conflictingRepo{TicketRepository: inner}
			return repo
		})
		ticket := f.createTicket(t, f.a, "t", domain.TicketPriorityLow)
		repo.remaining.Store(tc.conflicts)

		_, err := f.tickets.Assign(context.Background(), f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID)
		if tc.wantErr {
			assertKind(t, err, apperrors.CodeConflict)
		} else if err != nil {
			t.Errorf("%d conflict(s): %v", tc.conflicts, err)
		}
	}
}

func TestStorageTimeoutIsRetryableInternalError(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.a, "t", domain.TicketPriorityLow)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID)
	assertKind(t, err, apperrors.CodeInternal)
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Details["retryable"] != true {
		t.Errorf("timeout should be retryable: %+v", domainErr)
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	f := newFixture(t)
	var seen []events.EventType
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketResolved, events.EventCommentAdded} {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e.Type)
			return nil
		})
	}
	ctx := context.Background()
	ticket := f.createTicket(t, f.a, "t", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(ctx, f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.AddComment(ctx, f.a.principal(f.a.agent), ticket.ID, "done"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Resolve(ctx, f.a.principal(f.a.agent), ticket.ID); err != nil {
		t.Fatal(err)
	}
	want := []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventCommentAdded, events.EventTicketResolved}
	if len(seen) != len(want) {
		t.Fatalf("events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

// lockTrackingRepo flags the span during which a ticket row lock is held.
type lockTrackingRepo struct {
	repository.TicketRepository
	held atomic.Bool
}

func (r *lockTrackingRepo) UpdateLocked(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Ticket, error) {
	return r.TicketRepository.UpdateLocked(ctx, id, func(ticket *domain.Ticket) error {
		r.held.Store(true)
		defer r.held.Store(false)
		return fn(ticket)
	})
}

// lockAwareUsers counts user lookups issued while a ticket row lock is held.
type lockAwareUsers struct {
	repository.UserRepository
	lock          *lockTrackingRepo
	lookupsInLock atomic.Int32
}

func (u *lockAwareUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u.lock.held.Load() {
		u.lookupsInLock.Add(1)
	}
	return u.UserRepository.GetByID(ctx, id)
}

func TestAssign_LooksUpAssigneeOutsideRowLock(t *testing.T) {
	var lock *lockTrackingRepo
	f := newFixtureWithRepo(t, func(inner repository.TicketRepository) repository.TicketRepository {
		lock = &lockTrackingRepo{TicketRepository: inner}
		return lock
	})
	users := &lockAwareUsers{UserRepository: f.repos.Users, lock: lock}
	f.tickets.users = users

	ticket := f.createTicket(t, f.a, "t", domain.TicketPriorityLow)
	if _, err := f.tickets.Assign(context.Background(), f.a.principal(f.a.admin), ticket.ID, f.a.agent.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if n := users.lookupsInLock.Load(); n != 0 {
		t.Errorf("%d user lookups while holding the ticket lock", n)
	}

	// Check order is unchanged: a missing ticket wins over a missing assignee, and a
	// foreign ticket wins over a missing assignee.
	_, err := f.tickets.Assign(context.Background(), f.a.principal(f.a.admin), "no-such-ticket", "no-such-user")
	assertKind(t, err, apperrors.CodeNotFound)
	other := f.createTicket(t, f.b, "t", domain.TicketPriorityLow)
	_, err = f.tickets.Assign(context.Background(), f.a.principal(f.a.admin), other.ID, "no-such-user")
	assertKind(t, err, apperrors.CodeForbidden)
}

// failingCreateRepo rejects every ticket insert.
type failingCreateRepo struct {
	repository.TicketRepository
}

func (failingCreateRepo) Create(context.Context, *domain.Ticket) error {
	return errors.New("insert failed")
}

func TestCreate_RemovesAttachmentsWhenTicketNotStored(t *testing.T) {
	f := newFixtureWithRepo(t, func(inner repository.TicketRepository) repository.TicketRepository {
		return failingCreateRepo{TicketRepository: inner}
	})
	_, err := f.tickets.Create(context.Background(), f.a.principal(f.a.client),
		TicketDraft{Title: "t", Description: "d"},
		[]Attachment{{Name: "a.png", Data: []byte("a")}, {Name: "b.png", Data: []byte("b")}})
	assertKind(t, err, apperrors.CodeInternal)

	f.files.mu.Lock()
	defer f.files.mu.Unlock()
	if len(f.files.removed) != 2 {
		t.Fatalf("removed = %v, want both stored files", f.files.removed)
	}
	for i, url := range f.files.removed {
		if url != "http://files.test/uploads/"+f.files.stored[i] {
			t.Errorf("removed[%d] = %q", i, url)
		}
	}
}
