package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sav-service/internal/api/dto"
	"github.com/spec-kit/sav-service/internal/auth"
	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/service"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// actorFrom returns the caller identity placed by the auth middleware.
func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseTicketQuery(c *fiber.Ctx) service.TicketFilter {
	filter := service.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if tech := c.Query("technician_id"); tech != "" {
		filter.TechnicianID = &tech
	}
	if customer := c.Query("customer_ref"); customer != "" {
		filter.CustomerRef = &customer
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func ticketSummary(rec *domain.Reclamation) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           rec.ID,
		NumTicket:    rec.NumTicket,
		CustomerRef:  rec.CustomerRef,
		Subject:      rec.Subject,
		Category:     rec.Category,
		Priority:     rec.Priority,
		Status:       rec.Status,
		TechnicianID: rec.TechnicianID,
		OpenedAt:     rec.OpenedAt,
		ResolvedAt:   rec.ResolvedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketSummary:  ticketSummary(&view.Ticket),
		Description:    view.Ticket.Description,
		Solution:       view.Ticket.Solution,
		TechnicianName: view.TechnicianName,
		Interventions:  make([]dto.InterventionResponse, 0, len(view.Interventions)),
	}
	for i := range view.Interventions {
		iv := view.Interventions[i]
		item := interventionResponse(&iv.Intervention)
		for j := range iv.Assignments {
			item.Technicians = append(item.Technicians, assignmentResponse(&iv.Assignments[j]))
		}
		for j := range iv.WorkOrders {
			item.WorkOrders = append(item.WorkOrders, workOrderResponse(&iv.WorkOrders[j]))
		}
		resp.Interventions = append(resp.Interventions, item)
	}
	if view.Resolution != nil {
		resolution := workOrderResponse(view.Resolution)
		resp.Resolution = &resolution
	}
	return resp
}

func interventionResponse(di *domain.Intervention) dto.InterventionResponse {
	return dto.InterventionResponse{
		ID:               di.ID,
		NumDI:            di.NumDI,
		TicketID:         di.ReclamationID,
		FaultDescription: di.FaultDescription,
		SymptomCode:      di.SymptomCode,
		EquipmentRef:     di.EquipmentRef,
		DiagnosticNotes:  di.DiagnosticNotes,
		CreatedAt:        di.CreatedAt,
		UpdatedAt:        di.UpdatedAt,
	}
}

func assignmentResponse(a *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		InterventionID: a.InterventionID,
		NumDI:          a.NumDI,
		SequenceID:     a.SequenceID,
		TechnicianID:   a.TechnicianID,
		AssignedBy:     a.AssignedBy,
		AssignedAt:     a.AssignedAt,
	}
}

func workOrderResponse(bt *domain.WorkOrder) dto.WorkOrderResponse {
	return dto.WorkOrderResponse{
		ID:                 bt.ID,
		NumBT:              bt.NumBT,
		InterventionID:     bt.InterventionID,
		NumDI:              bt.NumDI,
		TechnicianID:       bt.TechnicianID,
		State:              bt.State,
		InProgress:         bt.InProgress(),
		Closed:             bt.Closed(),
		FaultDescription:   bt.FaultDescription,
		ConfirmedFaultCode: bt.ConfirmedFaultCode,
		RemedyCode:         bt.RemedyCode,
		RemedyDescription:  bt.RemedyDescription,
		Result:             bt.Result,
		StartedAt:          bt.StartedAt,
		FinishedAt:         bt.FinishedAt,
		ClosedAt:           bt.ClosedAt,
		ClosedBy:           bt.ClosedBy,
		CreatedAt:          bt.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.HistoryEntryResponse {
	resp := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryEntryResponse{
			ID:         entry.ID,
			EntityType: string(entry.EntityType),
			EntityID:   entry.EntityID,
			Action:     string(entry.Action),
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}

func staffResponse(staff *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:        staff.ID,
		Name:      staff.Name,
		Email:     staff.Email,
		Role:      staff.Role,
		Active:    staff.Active,
		CreatedAt: staff.CreatedAt,
	}
}
