package service

import (
	"context"
	"strings"

	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// TicketService manages reclamations: opening, first assignment and read projections.
type TicketService struct {
	workflow
}

// TicketOpenInput describes a new customer complaint.
type TicketOpenInput struct {
	CustomerRef string
	Subject     string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketFilter describes listing filters.
type TicketFilter struct {
	Statuses     []domain.TicketStatus
	TechnicianID *string
	CustomerRef  *string
	Limit        int
	Offset       int
}

// InterventionView groups a DI with its assignment log and work orders.
type InterventionView struct {
	Intervention domain.Intervention
	Assignments  []domain.Assignment
	WorkOrders   []domain.WorkOrder
}

// TicketView is the read projection returned by GetTicket.
type TicketView struct {
	Ticket         domain.Reclamation
	TechnicianName string
	Interventions  []InterventionView
	// Resolution is the closed work order that resolved the ticket.
	Resolution *domain.WorkOrder
}

// NewTicketService constructs the service.
func NewTicketService(deps WorkflowDependencies) *TicketService {
	return &TicketService{workflow: newWorkflow(deps)}
}

// OpenTicket registers a complaint in state OPEN.
func (s *TicketService) OpenTicket(ctx context.Context, actor domain.Actor, input TicketOpenInput) (*domain.Reclamation, error) {
	if err := authorize(actor, OpOpenTicket); err != nil {
		return nil, err
	}
	rec := &domain.Reclamation{
		CustomerRef: strings.TrimSpace(input.CustomerRef),
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   actor.ID,
	}
	if rec.Priority == "" {
		rec.Priority = domain.TicketPriorityMedium
	}
	if err := validateTicket(rec); err != nil {
		return nil, err
	}

	var scope *txScope
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Reclamations.Create(ctx, rec); err != nil {
			return err
		}
		scope = &txScope{repos: repos, actor: actor, reclamationID: rec.ID, now: s.now()}
		if err := scope.record(ctx, domain.EntityReclamation, rec.ID, domain.ActionTicketOpened, nil, map[string]any{
			"status":       rec.Status,
			"customer_ref": rec.CustomerRef,
			"priority":     rec.Priority,
		}); err != nil {
			return err
		}
		scope.emit(events.EventTicketOpened, events.TicketOpenedPayload{
			NumTicket:   rec.NumTicket,
			CustomerRef: rec.CustomerRef,
			Priority:    rec.Priority,
			Subject:     rec.Subject,
		})
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	s.afterCommit(ctx, scope)
	return rec, nil
}

func validateTicket(rec *domain.Reclamation) error {
	missing := []string{}
	if rec.CustomerRef == "" {
		missing = append(missing, "customer_ref")
	}
	if rec.Subject == "" {
		missing = append(missing, "subject")
	}
	if rec.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("required fields missing", map[string]any{"fields": missing})
	}
	if !rec.Priority.Valid() {
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": rec.Priority})
	}
	return nil
}

// AssignTechnician moves an OPEN ticket to IN_PROGRESS and materialises its first DI in the
// same transaction. The DI has no EquipDi row yet; staffing it is a separate step.
func (s *TicketService) AssignTechnician(ctx context.Context, actor domain.Actor, ticketID, technicianID string) (*domain.Reclamation, error) {
	if err := authorize(actor, OpAssignTechnician); err != nil {
		return nil, err
	}
	var result *domain.Reclamation
	err := s.mutate(ctx, actor, ticketID, func(ctx context.Context, tx *txScope) error {
		rec, err := tx.repos.Reclamations.GetByID(ctx, ticketID)
		if err != nil {
			return lookupError(err, "ticket", ticketID)
		}
		if err := rec.CanAssign(); err != nil {
			return transitionError(err, map[string]any{"ticket_id": rec.ID, "status": rec.Status})
		}
		tech, err := loadTechnician(ctx, tx.repos, technicianID)
		if err != nil {
			return err
		}
		oldStatus := rec.Status
		if err := rec.Assign(tech.ID, tx.now); err != nil {
			return transitionError(err, map[string]any{"ticket_id": rec.ID, "status": rec.Status})
		}
		if err := tx.repos.Reclamations.Update(ctx, rec); err != nil {
			return err
		}

		di := &domain.Intervention{
			ReclamationID:    rec.ID,
			FaultDescription: rec.Description,
			SymptomCode:      rec.Category,
			CreatedBy:        actor.ID,
			CreatedAt:        tx.now,
			UpdatedAt:        tx.now,
		}
		if err := tx.repos.Interventions.Create(ctx, di); err != nil {
			return err
		}

		if err := tx.record(ctx, domain.EntityReclamation, rec.ID, domain.ActionTechnicianAssigned,
			map[string]any{"status": oldStatus},
			map[string]any{"status": rec.Status, "technician_id": tech.ID}); err != nil {
			return err
		}
		if err := tx.record(ctx, domain.EntityIntervention, di.ID, domain.ActionInterventionCreated, nil,
			map[string]any{"num_di": di.NumDI, "fault_description": di.FaultDescription}); err != nil {
			return err
		}
		tx.emit(events.EventTechnicianAssigned, events.TechnicianAssignedPayload{
			TechnicianID:   tech.ID,
			InterventionID: di.ID,
			NumDI:          di.NumDI,
		})
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTicket returns the full projection of one aggregate.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketView, error) {
	if err := authorize(actor, OpGetTicket); err != nil {
		return nil, err
	}
	repos := s.store.Reader()
	rec, err := repos.Reclamations.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	view := &TicketView{Ticket: *rec}

	if rec.TechnicianID != nil {
		tech, err := repos.Staff.GetByID(ctx, *rec.TechnicianID)
		if err == nil {
			view.TechnicianName = tech.Name
		} else if !isNotFound(err) {
			return nil, storeError(err)
		}
	}

	dis, err := repos.Interventions.ListByReclamation(ctx, rec.ID)
	if err != nil {
		return nil, storeError(err)
	}
	for _, di := range dis {
		assignments, err := repos.Assignments.ListByIntervention(ctx, di.ID)
		if err != nil {
			return nil, storeError(err)
		}
		orders, err := repos.WorkOrders.ListByIntervention(ctx, di.ID)
		if err != nil {
			return nil, storeError(err)
		}
		for i := range orders {
			if orders[i].Closed() {
				closing := orders[i]
				view.Resolution = &closing
			}
		}
		view.Interventions = append(view.Interventions, InterventionView{
			Intervention: di,
			Assignments:  assignments,
			WorkOrders:   orders,
		})
	}
	return view, nil
}

// ListTickets returns a page of reclamations. Technicians only see tickets assigned to them.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketFilter) ([]domain.Reclamation, error) {
	if err := authorize(actor, OpListTickets); err != nil {
		return nil, err
	}
	repoFilter := repository.ReclamationFilter{
		Statuses:     filter.Statuses,
		TechnicianID: filter.TechnicianID,
		CustomerRef:  filter.CustomerRef,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if actor.Role == domain.RoleTechnician {
		self := actor.ID
		repoFilter.TechnicianID = &self
	}
	tickets, err := s.store.Reader().Reclamations.List(ctx, repoFilter)
	if err != nil {
		return nil, storeError(err)
	}
	return tickets, nil
}

// History returns the audit trail of one aggregate, oldest first.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if err := authorize(actor, OpTicketHistory); err != nil {
		return nil, err
	}
	repos := s.store.Reader()
	if _, err := repos.Reclamations.GetByID(ctx, ticketID); err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	entries, err := repos.History.ListByReclamation(ctx, ticketID)
	if err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}
