package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sav-service/internal/api/dto"
	"github.com/spec-kit/sav-service/internal/service"
)

// TicketsHandler exposes reclamation endpoints.
type TicketsHandler struct {
	tickets       *service.TicketService
	interventions *service.InterventionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, interventions *service.InterventionService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, interventions: interventions}
}

// OpenTicket POST /api/tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.OpenTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rec, err := h.tickets.OpenTicket(c.UserContext(), actor, service.TicketOpenInput{
		CustomerRef: req.CustomerRef,
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(rec)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// AssignTechnician POST /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTechnician(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTechnicianRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rec, err := h.tickets.AssignTechnician(c.UserContext(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(rec)})
}

// CreateIntervention POST /api/tickets/:id/interventions.
func (h *TicketsHandler) CreateIntervention(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateInterventionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	di, err := h.interventions.CreateIntervention(c.UserContext(), actor, c.Params("id"), service.InterventionInput{
		FaultDescription: req.FaultDescription,
		SymptomCode:      req.SymptomCode,
		EquipmentRef:     req.EquipmentRef,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": interventionResponse(di)})
}
