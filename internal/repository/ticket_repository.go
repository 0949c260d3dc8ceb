package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures list parameters. OrganizationID is mandatory; nil fields match anything.
type TicketFilter struct {
	OrganizationID string
	ClientID       *string
	Status         *domain.TicketStatus
	Priority       *domain.TicketPriority
	Unassigned     bool
}

// MutateFunc edits a locked ticket in place. Returning an error aborts the update.
type MutateFunc func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetDetail returns the joined read view without comments.
	GetDetail(ctx context.Context, id string) (*domain.TicketDetail, error)
	// ListWithFilter returns matches oldest first, ties in insertion order.
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateLocked loads the ticket under a row lock, applies fn and persists the result
	// atomically. It returns ErrConflict if a concurrent writer interfered.
	UpdateLocked(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.organization_id, t.title, t.description, t.status, t.priority, t.client_id,
               t.assigned_to_id, t.assigned_by_id, t.created_at, t.updated_at, t.due_date, t.photo_paths, t.version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, title, description, status, priority, client_id, due_date, photo_paths)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at, version`
	if ticket.PhotoPaths == nil {
		ticket.PhotoPaths = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.ClientID,
		ticket.DueDate,
		ticket.PhotoPaths,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
	return translate(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) GetDetail(ctx context.Context, id string) (*domain.TicketDetail, error) {
	const query = `
        SELECT ` + ticketColumns + `, o.name, c.name, a.name, b.name
        FROM tickets t
        JOIN organizations o ON o.id = t.organization_id
        JOIN users c ON c.id = t.client_id
        LEFT JOIN users a ON a.id = t.assigned_to_id
        LEFT JOIN users b ON b.id = t.assigned_by_id
        WHERE t.id=$1`

	var detail domain.TicketDetail
	dest := append(ticketScanTargets(&detail.Ticket),
		&detail.OrganizationName,
		&detail.ClientName,
		&detail.AssignedToName,
		&detail.AssignedByName,
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(dest...); err != nil {
		return nil, translate(err)
	}
	return &detail, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets t`
	args := []any{filter.OrganizationID}
	clauses := []string{"t.organization_id=$1"}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("t.client_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.assigned_to_id IS NULL")
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at ASC, t.seq ASC`, base, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateLocked(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const lockQuery = `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1 FOR UPDATE`
		ticket, err := scanTicket(tx.QueryRow(ctx, lockQuery, id))
		if err != nil {
			return translate(err)
		}
		version := ticket.Version
		if err := fn(ticket); err != nil {
			return err
		}

		const updateQuery = `
            UPDATE tickets SET status=$1, priority=$2, assigned_to_id=$3, assigned_by_id=$4,
                due_date=$5, updated_at=NOW(), version=version+1
            WHERE id=$6 AND version=$7
            RETURNING updated_at, version`
		if err := tx.QueryRow(ctx, updateQuery,
			ticket.Status,
			ticket.Priority,
			ticket.AssignedToID,
			ticket.AssignedByID,
			ticket.DueDate,
			ticket.ID,
			version,
		).Scan(&ticket.UpdatedAt, &ticket.Version); err != nil {
			if translated := translate(err); translated != ErrNotFound {
				return translated
			}
			return ErrConflict
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func ticketScanTargets(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.ClientID,
		&ticket.AssignedToID,
		&ticket.AssignedByID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DueDate,
		&ticket.PhotoPaths,
		&ticket.Version,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
