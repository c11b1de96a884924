package service

import (
	"context"
	"strings"

	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// InterventionService manages diagnostic requests (DI), their technician assignments
// (EquipDi) and the creation of work orders (BT).
type InterventionService struct {
	workflow
}

// InterventionInput describes a new DI.
type InterventionInput struct {
	FaultDescription string
	SymptomCode      string
	EquipmentRef     *string
}

// NewInterventionService creates the service.
func NewInterventionService(deps WorkflowDependencies) *InterventionService {
	return &InterventionService{workflow: newWorkflow(deps)}
}

// CreateIntervention opens a DI on an IN_PROGRESS ticket that has no open DI.
func (s *InterventionService) CreateIntervention(ctx context.Context, actor domain.Actor, ticketID string, input InterventionInput) (*domain.Intervention, error) {
	if err := authorize(actor, OpCreateIntervention); err != nil {
		return nil, err
	}
	di := &domain.Intervention{
		ReclamationID:    ticketID,
		FaultDescription: strings.TrimSpace(input.FaultDescription),
		SymptomCode:      strings.TrimSpace(input.SymptomCode),
		CreatedBy:        actor.ID,
	}
	if input.EquipmentRef != nil {
		if ref := strings.TrimSpace(*input.EquipmentRef); ref != "" {
			di.EquipmentRef = &ref
		}
	}
	if di.FaultDescription == "" {
		return nil, apperrors.NewValidationError("fault_description is required", map[string]any{"fields": []string{"fault_description"}})
	}

	err := s.mutate(ctx, actor, ticketID, func(ctx context.Context, tx *txScope) error {
		rec, err := tx.repos.Reclamations.GetByID(ctx, ticketID)
		if err != nil {
			return lookupError(err, "ticket", ticketID)
		}
		if rec.Status != domain.TicketStatusInProgress {
			return apperrors.NewInvalidState("ticket is not in progress", map[string]any{"ticket_id": rec.ID, "status": rec.Status})
		}
		open, err := openInterventions(ctx, tx.repos, rec.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return apperrors.NewConflict("ticket already has an open intervention", map[string]any{
				"ticket_id":       rec.ID,
				"intervention_id": open[0].ID,
			})
		}

		di.CreatedAt = tx.now
		di.UpdatedAt = tx.now
		if err := tx.repos.Interventions.Create(ctx, di); err != nil {
			return err
		}
		if err := tx.record(ctx, domain.EntityIntervention, di.ID, domain.ActionInterventionCreated, nil,
			map[string]any{"num_di": di.NumDI, "fault_description": di.FaultDescription, "symptom_code": di.SymptomCode}); err != nil {
			return err
		}
		tx.emit(events.EventInterventionCreated, events.InterventionCreatedPayload{InterventionID: di.ID, NumDI: di.NumDI})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return di, nil
}

// AssignTechnicianToIntervention appends an EquipDi row. A technician already on the DI is
// returned as is: retries never add a second row.
func (s *InterventionService) AssignTechnicianToIntervention(ctx context.Context, actor domain.Actor, interventionID, technicianID string) (*domain.Assignment, error) {
	if err := authorize(actor, OpAssignTechnicianToIntervention); err != nil {
		return nil, err
	}
	rootID, err := s.rootOfIntervention(ctx, interventionID)
	if err != nil {
		return nil, err
	}

	var result *domain.Assignment
	err = s.mutate(ctx, actor, rootID, func(ctx context.Context, tx *txScope) error {
		di, err := tx.repos.Interventions.GetByID(ctx, interventionID)
		if err != nil {
			return lookupError(err, "intervention", interventionID)
		}
		if err := requireOpen(ctx, tx, di); err != nil {
			return err
		}
		tech, err := loadTechnician(ctx, tx.repos, technicianID)
		if err != nil {
			return err
		}

		existing, err := tx.repos.Assignments.ListByIntervention(ctx, di.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].TechnicianID == tech.ID {
				found := existing[i]
				result = &found
				return nil
			}
		}

		assignment := &domain.Assignment{
			NumDI:          di.NumDI,
			InterventionID: di.ID,
			TechnicianID:   tech.ID,
			AssignedBy:     actor.ID,
			AssignedAt:     tx.now,
		}
		if err := tx.repos.Assignments.Create(ctx, assignment); err != nil {
			return err
		}
		if err := tx.record(ctx, domain.EntityAssignment, di.ID, domain.ActionInterventionStaffed, nil,
			map[string]any{"technician_id": tech.ID, "sequence_id": assignment.SequenceID}); err != nil {
			return err
		}
		tx.emit(events.EventTechnicianAssigned, events.TechnicianAssignedPayload{
			TechnicianID:   tech.ID,
			InterventionID: di.ID,
			NumDI:          di.NumDI,
		})
		result = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateWorkOrder issues a BT for a technician already assigned to the DI.
func (s *InterventionService) CreateWorkOrder(ctx context.Context, actor domain.Actor, interventionID, technicianID string) (*domain.WorkOrder, error) {
	if err := authorize(actor, OpCreateWorkOrder); err != nil {
		return nil, err
	}
	if technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id is required", nil)
	}
	rootID, err := s.rootOfIntervention(ctx, interventionID)
	if err != nil {
		return nil, err
	}

	var bt *domain.WorkOrder
	err = s.mutate(ctx, actor, rootID, func(ctx context.Context, tx *txScope) error {
		di, err := tx.repos.Interventions.GetByID(ctx, interventionID)
		if err != nil {
			return lookupError(err, "intervention", interventionID)
		}
		if err := requireOpen(ctx, tx, di); err != nil {
			return err
		}

		assignments, err := tx.repos.Assignments.ListByIntervention(ctx, di.ID)
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			return apperrors.NewConflict("intervention has no assigned technician", map[string]any{"intervention_id": di.ID})
		}
		if !domain.HasTechnician(assignments, technicianID) {
			return apperrors.NewConflict("technician is not assigned to the intervention", map[string]any{
				"intervention_id": di.ID,
				"technician_id":   technicianID,
			})
		}

		orders, err := tx.repos.WorkOrders.ListByIntervention(ctx, di.ID)
		if err != nil {
			return err
		}
		for _, existing := range orders {
			if !existing.Closed() {
				return apperrors.NewConflict("intervention already has an active work order", map[string]any{
					"intervention_id": di.ID,
					"work_order_id":   existing.ID,
				})
			}
		}

		bt = &domain.WorkOrder{
			InterventionID:   di.ID,
			NumDI:            di.NumDI,
			TechnicianID:     technicianID,
			FaultDescription: di.FaultDescription,
			State:            domain.WorkOrderCreated,
			CreatedBy:        actor.ID,
			CreatedAt:        tx.now,
			UpdatedAt:        tx.now,
		}
		if err := tx.repos.WorkOrders.Create(ctx, bt); err != nil {
			return err
		}
		if err := tx.record(ctx, domain.EntityWorkOrder, bt.ID, domain.ActionWorkOrderCreated, nil,
			map[string]any{"num_bt": bt.NumBT, "state": bt.State, "technician_id": bt.TechnicianID}); err != nil {
			return err
		}
		tx.emit(events.EventWorkOrderStateChanged, events.WorkOrderStateChangedPayload{
			WorkOrderID: bt.ID,
			NumBT:       bt.NumBT,
			NewState:    bt.State,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bt, nil
}

// UpdateDiagnosticNotes edits the only DI field that stays mutable once a BT exists.
func (s *InterventionService) UpdateDiagnosticNotes(ctx context.Context, actor domain.Actor, interventionID, notes string) (*domain.Intervention, error) {
	if err := authorize(actor, OpUpdateDiagnosticNotes); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.NewValidationError("notes are required", map[string]any{"fields": []string{"notes"}})
	}
	rootID, err := s.rootOfIntervention(ctx, interventionID)
	if err != nil {
		return nil, err
	}

	var result *domain.Intervention
	err = s.mutate(ctx, actor, rootID, func(ctx context.Context, tx *txScope) error {
		di, err := tx.repos.Interventions.GetByID(ctx, interventionID)
		if err != nil {
			return lookupError(err, "intervention", interventionID)
		}
		assignments, err := tx.repos.Assignments.ListByIntervention(ctx, di.ID)
		if err != nil {
			return err
		}
		if err := requireAssignee(actor, OpUpdateDiagnosticNotes, domain.HasTechnician(assignments, actor.ID)); err != nil {
			return err
		}
		if err := requireOpen(ctx, tx, di); err != nil {
			return err
		}

		old := di.DiagnosticNotes
		if err := tx.repos.Interventions.UpdateNotes(ctx, di.ID, notes, tx.now); err != nil {
			return err
		}
		di.DiagnosticNotes = notes
		di.UpdatedAt = tx.now
		if err := tx.record(ctx, domain.EntityIntervention, di.ID, domain.ActionNotesUpdated,
			map[string]any{"diagnostic_notes": old},
			map[string]any{"diagnostic_notes": notes}); err != nil {
			return err
		}
		result = di
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func requireOpen(ctx context.Context, tx *txScope, di *domain.Intervention) error {
	closed, err := interventionClosed(ctx, tx.repos, di.ID)
	if err != nil {
		return err
	}
	if closed {
		return apperrors.NewInvalidState("intervention is closed", map[string]any{"intervention_id": di.ID})
	}
	return nil
}
