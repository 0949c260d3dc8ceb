package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	orgs       repository.OrganizationRepository
	users      repository.UserRepository
	tokens     *auth.TokenManager
	throttle   auth.LoginThrottle
	bcryptCost int
	dummyHash  string
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	OrganizationRepo repository.OrganizationRepository
	UserRepo         repository.UserRepository
	Tokens           *auth.TokenManager
	Throttle         auth.LoginThrottle
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token auth.Token
	User  *domain.User
}

// RegisterOrganizationInput describes a new tenant and its first administrator.
type RegisterOrganizationInput struct {
	OrganizationName string
	AdminName        string
	AdminEmail       string
	AdminPassword    string
}

// NewUserInput describes a member created inside an existing organization.
type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

type noopThrottle struct{}

func (noopThrottle) Allow(context.Context, string) bool    { return true }
func (noopThrottle) RecordFailure(context.Context, string) {}
func (noopThrottle) Reset(context.Context, string)         {}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	throttle := deps.Throttle
	if throttle == nil {
		throttle = noopThrottle{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// Unknown emails are compared against this hash so both failure paths cost the same.
	dummyHash, err := auth.HashPassword("helpdesk-timing-equalizer", cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		orgs:       deps.OrganizationRepo,
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		throttle:   throttle,
		bcryptCost: cfg.BcryptCost,
		dummyHash:  dummyHash,
		logger:     logger,
		metrics:    deps.Metrics,
	}, nil
}

// TokenManager exposes the token issuer shared with the access guard.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Login authenticates by email and password and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	if !s.throttle.Allow(ctx, email) {
		s.metrics.RecordLogin("throttled")
		return nil, apperrors.NewTooManyRequests("too many failed login attempts, try again later")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, mapRepoError(err, "user", nil)
	}
	if user == nil {
		auth.PasswordMatches(s.dummyHash, password)
		return nil, s.loginFailed(ctx, email)
	}
	if !auth.PasswordMatches(user.PasswordHash, password) {
		return nil, s.loginFailed(ctx, email)
	}

	s.throttle.Reset(ctx, email)
	token, err := s.tokens.Issue(user.ID, user.Role, user.OrganizationID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.metrics.RecordLogin("success")
	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("organization_id", user.OrganizationID),
		zap.String("role", string(user.Role)))
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) error {
	s.throttle.RecordFailure(ctx, email)
	s.metrics.RecordLogin("invalid")
	return apperrors.NewUnauthenticated("invalid credentials", "")
}

// RegisterOrganization creates a tenant together with its ADMIN user.
func (s *AuthService) RegisterOrganization(ctx context.Context, input RegisterOrganizationInput) (*domain.Organization, *domain.User, error) {
	orgName := strings.TrimSpace(input.OrganizationName)
	if orgName == "" {
		return nil, nil, apperrors.NewValidationError("organization name required", map[string]any{"field": "organization_name"})
	}
	admin, err := s.newUser(NewUserInput{
		Name:     input.AdminName,
		Email:    input.AdminEmail,
		Password: input.AdminPassword,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return nil, nil, err
	}

	org := &domain.Organization{Name: orgName}
	if err := s.orgs.CreateWithAdmin(ctx, org, admin); err != nil {
		return nil, nil, mapRepoError(err, "user", map[string]any{"email": admin.Email})
	}
	s.logger.Info("organization registered",
		zap.String("organization_id", org.ID),
		zap.String("admin_id", admin.ID))
	return org, admin, nil
}

// RegisterClient signs up a CLIENT in an existing organization.
func (s *AuthService) RegisterClient(ctx context.Context, organizationID string, input NewUserInput) (*domain.User, error) {
	input.Role = domain.RoleClient
	return s.createInOrganization(ctx, organizationID, input)
}

// CreateMember lets an ADMIN add a user of any role to their own organization.
func (s *AuthService) CreateMember(ctx context.Context, principal domain.Principal, input NewUserInput) (*domain.User, error) {
	if principal.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only ADMIN may create members")
	}
	return s.createInOrganization(ctx, principal.OrganizationID, input)
}

func (s *AuthService) createInOrganization(ctx context.Context, organizationID string, input NewUserInput) (*domain.User, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, apperrors.NewValidationError("organization_id required", map[string]any{"field": "organization_id"})
	}
	user, err := s.newUser(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.orgs.GetByID(ctx, organizationID); err != nil {
		return nil, mapRepoError(err, "organization", map[string]any{"organization_id": organizationID})
	}
	user.OrganizationID = organizationID
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"email": user.Email})
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("organization_id", organizationID),
		zap.String("role", string(user.Role)))
	return user, nil
}

// newUser validates input and hashes the password. OrganizationID is left for the caller.
func (s *AuthService) newUser(input NewUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	fields := map[string]any{}
	if name == "" {
		fields["name"] = "required"
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["email"] = "invalid"
	}
	if input.Password == "" {
		fields["password"] = "required"
	} else if len(input.Password) > auth.MaxPasswordBytes {
		fields["password"] = "too long"
	}
	if !input.Role.Valid() {
		fields["role"] = "invalid"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid user", fields)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.User{Name: name, Email: email, PasswordHash: hash, Role: input.Role}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
