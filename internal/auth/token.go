package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DefaultTokenTTL applies when no positive lifetime is configured.
const DefaultTokenTTL = time.Hour

// TokenErrorKind classifies why a token was rejected.
type TokenErrorKind string

const (
	// TokenMalformed covers unparseable tokens, bad signatures and unusable claims.
	TokenMalformed TokenErrorKind = "malformed"
	// TokenExpired means signature and claims were fine but now >= expiresAt.
	TokenExpired TokenErrorKind = "expired"
	// TokenScopeMismatch means the token is valid but fails a role or organization constraint.
	TokenScopeMismatch TokenErrorKind = "scope_mismatch"
)

// TokenError is returned by Validate.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return "token " + string(e.Kind)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenErrorKindOf extracts the kind from err, or "" if err is not a TokenError.
func TokenErrorKindOf(err error) TokenErrorKind {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return ""
}

// Constraints narrow what Validate accepts. Zero values mean "any".
type Constraints struct {
	Role           domain.Role
	OrganizationID string
}

// Token is an issued, signed credential.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	return &clone
}

// TTL returns the token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Claims describes JWT payload. Subject carries the user id.
type Claims struct {
	Role           domain.Role `json:"role"`
	OrganizationID string      `json:"org"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the subject. The expiry is fixed at issuance.
func (tm *TokenManager) Issue(subjectID string, role domain.Role, organizationID string) (Token, error) {
	if subjectID == "" || organizationID == "" || !role.Valid() {
		return Token{}, errors.New("subject, organization and a known role are required")
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Role:           role,
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, IssuedAt: claims.IssuedAt.Time, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate verifies signature and expiry, then applies the optional constraints.
// It performs no I/O and depends only on the token, the clock and the key.
func (tm *TokenManager) Validate(tokenStr string, constraints Constraints) (domain.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, tm.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && tm.signatureValid(tokenStr) {
			return domain.Principal{}, &TokenError{Kind: TokenExpired, Err: err}
		}
		return domain.Principal{}, &TokenError{Kind: TokenMalformed, Err: err}
	}

	if claims.Subject == "" || claims.OrganizationID == "" || !claims.Role.Valid() {
		return domain.Principal{}, &TokenError{Kind: TokenMalformed, Err: errors.New("incomplete claims")}
	}

	if constraints.Role != "" && claims.Role != constraints.Role {
		return domain.Principal{}, &TokenError{Kind: TokenScopeMismatch, Err: fmt.Errorf("role %s required", constraints.Role)}
	}
	if constraints.OrganizationID != "" && claims.OrganizationID != constraints.OrganizationID {
		return domain.Principal{}, &TokenError{Kind: TokenScopeMismatch, Err: errors.New("organization mismatch")}
	}

	principal := domain.Principal{
		SubjectID:      claims.Subject,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
		ExpiresAt:      claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	return principal, nil
}

func (tm *TokenManager) keyFunc(*jwt.Token) (interface{}, error) {
	return tm.secret, nil
}

// signatureValid checks integrity alone, so a forged token past its expiry is
// reported as malformed rather than expired.
func (tm *TokenManager) signatureValid(tokenStr string) bool {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenStr, &Claims{}, tm.keyFunc)
	return err == nil
}
