package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sav-service/internal/api/dto"
	"github.com/spec-kit/sav-service/internal/service"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// WorkOrdersHandler exposes technician execution and closure.
type WorkOrdersHandler struct {
	service *service.ExecutionService
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(execution *service.ExecutionService) *WorkOrdersHandler {
	return &WorkOrdersHandler{service: execution}
}

// Start POST /api/work-orders/:id/start.
func (h *WorkOrdersHandler) Start(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	bt, err := h.service.StartWork(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workOrderResponse(bt)})
}

// Finish POST /api/work-orders/:id/finish.
func (h *WorkOrdersHandler) Finish(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.FinishWorkRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	bt, err := h.service.FinishWork(c.UserContext(), actor, c.Params("id"), service.FinishInput{
		RemedyCode:         req.RemedyCode,
		RemedyDescription:  req.RemedyDescription,
		Result:             req.Result,
		ConfirmedFaultCode: req.ConfirmedFaultCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workOrderResponse(bt)})
}

// Close POST /api/work-orders/:id/close. Closing twice answers 200 with a notice.
func (h *WorkOrdersHandler) Close(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	bt, err := h.service.CloseWorkOrder(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		if bt != nil && apperrors.IsAlreadyClosed(err) {
			notice := apperrors.ToDomainError(err)
			return c.JSON(fiber.Map{
				"data":   workOrderResponse(bt),
				"notice": fiber.Map{"code": notice.Code, "message": notice.Message},
			})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": workOrderResponse(bt)})
}
