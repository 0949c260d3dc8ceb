package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OrganizationRepository persists tenants.
type OrganizationRepository interface {
	// CreateWithAdmin inserts the organization and its first user atomically.
	CreateWithAdmin(ctx context.Context, org *domain.Organization, admin *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

func (r *organizationRepository) CreateWithAdmin(ctx context.Context, org *domain.Organization, admin *domain.User) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `INSERT INTO organizations (name) VALUES ($1) RETURNING id, created_at`
		if err := tx.QueryRow(ctx, query, org.Name).Scan(&org.ID, &org.CreatedAt); err != nil {
			return translate(err)
		}
		admin.OrganizationID = org.ID
		return insertUser(ctx, tx, admin)
	})
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	const query = `SELECT id, name, created_at FROM organizations WHERE id=$1`
	var org domain.Organization
	if err := r.pool.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &org, nil
}
