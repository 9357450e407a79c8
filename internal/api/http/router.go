package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-sla/internal/api/http/handlers"
	"github.com/spec-kit/support-sla/internal/auth"
	"github.com/spec-kit/support-sla/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Tenants        *handlers.TenantsHandler
	SLAPolicies    *handlers.SLAPoliciesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	staff := auth.RequireStaff()

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/transitions", cfg.Tickets.Transitions)
	tickets.Get("/:id/sla", cfg.Tickets.SLAStatus)
	tickets.Post("/:id/satisfaction", auth.RequireRole(auth.RoleCustomer), cfg.Tickets.SubmitSatisfaction)
	tickets.Get("/:id/events", staff, cfg.Tickets.ListEvents)
	tickets.Post("/:id/status", staff, cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/sla/pause", staff, cfg.Tickets.PauseSLA)
	tickets.Post("/:id/sla/resume", staff, cfg.Tickets.ResumeSLA)

	api.Get("/sla-policies", cfg.SLAPolicies.List)
	api.Get("/tenants/health-score", staff, cfg.Tenants.HealthScore)
	api.Post("/admin/sla/sweep", auth.RequireRole(auth.RoleAdmin), cfg.Tenants.RunSweep)
}
