package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sav-service/internal/api/http/handlers"
	"github.com/spec-kit/sav-service/internal/auth"
	"github.com/spec-kit/sav-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	Interventions  *handlers.InterventionsHandler
	WorkOrders     *handlers.WorkOrdersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role guards here are coarse; the services apply the
// full policy including assignee checks.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireRole())

	admin := auth.RequireRole(domain.RoleAdmin)
	desk := auth.RequireRole(domain.RoleAdmin, domain.RoleAgent)
	field := auth.RequireRole(domain.RoleAdmin, domain.RoleTechnician)

	api.Post("/staff", admin, cfg.Staff.CreateStaff)
	api.Get("/staff", desk, cfg.Staff.ListStaff)

	tickets := api.Group("/tickets")
	tickets.Post("/", desk, cfg.Tickets.OpenTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/assign", admin, cfg.Tickets.AssignTechnician)
	tickets.Post("/:id/interventions", desk, cfg.Tickets.CreateIntervention)

	interventions := api.Group("/interventions")
	interventions.Post("/:id/technicians", admin, cfg.Interventions.AssignTechnician)
	interventions.Patch("/:id/notes", field, cfg.Interventions.UpdateNotes)
	interventions.Post("/:id/work-orders", admin, cfg.Interventions.CreateWorkOrder)

	workOrders := api.Group("/work-orders")
	workOrders.Post("/:id/start", field, cfg.WorkOrders.Start)
	workOrders.Post("/:id/finish", field, cfg.WorkOrders.Finish)
	workOrders.Post("/:id/close", admin, cfg.WorkOrders.Close)
}
