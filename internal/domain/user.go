package domain

import "time"

// Role is fixed when the user is created.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RoleClient Role = "CLIENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleClient:
		return true
	}
	return false
}

// IsStaff reports whether the role may triage tickets.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgent
}

// Organization is the tenant boundary owning users and tickets.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User belongs to exactly one organization.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	OrganizationID string
	CreatedAt      time.Time
}
