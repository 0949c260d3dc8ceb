package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AuthHandler exposes the unauthenticated login and registration endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.LoginResponse{
		Token:          result.Token.Value,
		SubjectID:      result.User.ID,
		Role:           result.User.Role,
		OrganizationID: result.User.OrganizationID,
		ExpiresAt:      result.Token.ExpiresAt,
	}))
}

// RegisterOrganization handles POST /api/auth/register/organization.
func (h *AuthHandler) RegisterOrganization(c *fiber.Ctx) error {
	var req dto.RegisterOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	org, admin, err := h.auth.RegisterOrganization(c.UserContext(), service.RegisterOrganizationInput{
		OrganizationName: req.OrganizationName,
		AdminName:        req.AdminName,
		AdminEmail:       req.AdminEmail,
		AdminPassword:    req.AdminPassword,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.RegisterOrganizationResponse{
		Organization: dto.NewOrganizationResponse(org),
		Admin:        dto.NewUserResponse(admin),
	}))
}

// RegisterClient handles POST /api/auth/register/client.
func (h *AuthHandler) RegisterClient(c *fiber.Ctx) error {
	var req dto.RegisterClientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrganizationID == "" {
		return apperrors.NewValidationError("organization_id required", nil)
	}
	user, err := h.auth.RegisterClient(c.UserContext(), req.OrganizationID, service.NewUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.NewUserResponse(user)))
}
