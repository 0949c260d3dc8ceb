package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and attaches the resulting Principal.
// It never touches storage; ticket-level policy stays with the services.
type AuthMiddleware struct {
	tokens    *TokenManager
	allowlist []string
}

// NewAuthMiddleware constructs middleware. Requests whose path starts with one of
// publicPaths pass through unauthenticated.
func NewAuthMiddleware(tokens *TokenManager, publicPaths ...string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, allowlist: publicPaths}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.isPublic(c.Path()) {
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthenticated("missing authorization header", "missing")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthenticated("invalid authorization header", string(TokenMalformed))
	}

	principal, err := m.tokens.Validate(strings.TrimSpace(parts[1]), Constraints{})
	if err != nil {
		return tokenFailure(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *AuthMiddleware) isPublic(path string) bool {
	for _, prefix := range m.allowlist {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func tokenFailure(err error) error {
	switch kind := TokenErrorKindOf(err); kind {
	case TokenExpired:
		return apperrors.NewUnauthenticated("token expired", string(kind))
	case TokenScopeMismatch:
		return apperrors.NewForbidden("token scope does not permit this request")
	default:
		return apperrors.NewUnauthenticated("invalid token", string(TokenMalformed))
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}
