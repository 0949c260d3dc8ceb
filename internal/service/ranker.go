package service

import (
	"slices"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// SortDirection selects ascending (most urgent first) or descending priority order.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// ParseSortDirection accepts "", "asc" and "desc" in any case. Empty means ascending.
func ParseSortDirection(val string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(val))) {
	case "", SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	}
	return "", apperrors.NewValidationError("direction must be asc or desc", map[string]any{"direction": val})
}

// RankByPriority returns a new slice ordered by priority rank, keeping input order among
// equal priorities. Descending is the exact reverse of the ascending result, so ties
// appear in reversed input order.
func RankByPriority(tickets []domain.Ticket, direction SortDirection) []domain.Ticket {
	ranked := slices.Clone(tickets)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority.Rank() < ranked[j].Priority.Rank()
	})
	if direction == SortDescending {
		slices.Reverse(ranked)
	}
	return ranked
}
