package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/storage"
)

// Paths reachable without a bearer token. Matching is by prefix.
var publicPaths = []string{"/api/auth/login", "/api/auth/register"}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Users     *handlers.UsersHandler
	Tickets   *handlers.TicketsHandler
	Tokens    *auth.TokenManager
	Metrics   *observability.Metrics
	UploadDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}
	if cfg.UploadDir != "" {
		app.Static(storage.PublicPrefix, cfg.UploadDir)
	}

	guard := auth.NewAuthMiddleware(cfg.Tokens, publicPaths...)
	api := app.Group("/api", guard.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register/organization", cfg.Auth.RegisterOrganization)
	authGroup.Post("/register/client", cfg.Auth.RegisterClient)

	api.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)

	tickets := api.Group("/tickets")
	tickets.Post("/", auth.RequireRole(domain.RoleClient), cfg.Tickets.CreateTicket)
	tickets.Get("/", auth.RequireAnyRole(), cfg.Tickets.ListTickets)
	tickets.Get("/ranked", auth.RequireAnyRole(), cfg.Tickets.RankTickets)
	tickets.Get("/unassigned", auth.RequireStaff(), cfg.Tickets.ListUnassigned)
	tickets.Get("/:id", auth.RequireAnyRole(), cfg.Tickets.GetTicket)
	tickets.Post("/:id/assign", auth.RequireStaff(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/resolve", auth.RequireStaff(), cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/comments", auth.RequireAnyRole(), cfg.Tickets.AddComment)
}
