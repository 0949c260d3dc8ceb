package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Set bundles the repositories a service graph needs.
type Set struct {
	Organizations OrganizationRepository
	Users         UserRepository
	Tickets       TicketRepository
	Comments      CommentRepository
}

// NewPostgresSet wires every Postgres-backed repository to the same pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Organizations: NewOrganizationRepository(pool),
		Users:         NewUserRepository(pool),
		Tickets:       NewTicketRepository(pool),
		Comments:      NewCommentRepository(pool),
	}
}
