package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sav-service/internal/api/dto"
	"github.com/spec-kit/sav-service/internal/service"
)

// InterventionsHandler exposes DI staffing and work-order creation.
type InterventionsHandler struct {
	service *service.InterventionService
}

// NewInterventionsHandler constructs handler.
func NewInterventionsHandler(interventions *service.InterventionService) *InterventionsHandler {
	return &InterventionsHandler{service: interventions}
}

// AssignTechnician POST /api/interventions/:id/technicians.
func (h *InterventionsHandler) AssignTechnician(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTechnicianRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	assignment, err := h.service.AssignTechnicianToIntervention(c.UserContext(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// UpdateNotes PATCH /api/interventions/:id/notes.
func (h *InterventionsHandler) UpdateNotes(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateNotesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	di, err := h.service.UpdateDiagnosticNotes(c.UserContext(), actor, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": interventionResponse(di)})
}

// CreateWorkOrder POST /api/interventions/:id/work-orders.
func (h *InterventionsHandler) CreateWorkOrder(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	bt, err := h.service.CreateWorkOrder(c.UserContext(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": workOrderResponse(bt)})
}
