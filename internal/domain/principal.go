package domain

import "time"

// Principal is the verified identity attached to a single request. It is never persisted.
type Principal struct {
	SubjectID      string
	Role           Role
	OrganizationID string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// HasRole reports whether the principal holds any of the given roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}
