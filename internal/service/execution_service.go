package service

import (
	"context"
	"strings"

	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// ExecutionService drives work orders through CREATED -> STARTED -> FINISHED -> CLOSED.
type ExecutionService struct {
	workflow
}

// FinishInput is the technician's report.
type FinishInput struct {
	RemedyCode         string
	RemedyDescription  string
	Result             string
	ConfirmedFaultCode string
}

// NewExecutionService creates the service.
func NewExecutionService(deps WorkflowDependencies) *ExecutionService {
	return &ExecutionService{workflow: newWorkflow(deps)}
}

// StartWork moves a CREATED work order to STARTED.
func (s *ExecutionService) StartWork(ctx context.Context, actor domain.Actor, workOrderID string) (*domain.WorkOrder, error) {
	if err := authorize(actor, OpStartWork); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, OpStartWork, workOrderID, domain.ActionWorkStarted, func(bt *domain.WorkOrder, tx *txScope) error {
		return bt.Start(tx.now)
	})
}

// FinishWork records the report and moves a STARTED work order to FINISHED.
func (s *ExecutionService) FinishWork(ctx context.Context, actor domain.Actor, workOrderID string, input FinishInput) (*domain.WorkOrder, error) {
	if err := authorize(actor, OpFinishWork); err != nil {
		return nil, err
	}
	report := domain.WorkReport{
		RemedyCode:         strings.TrimSpace(input.RemedyCode),
		RemedyDescription:  strings.TrimSpace(input.RemedyDescription),
		Result:             strings.TrimSpace(input.Result),
		ConfirmedFaultCode: strings.TrimSpace(input.ConfirmedFaultCode),
	}
	if err := validateReport(report); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, OpFinishWork, workOrderID, domain.ActionWorkFinished, func(bt *domain.WorkOrder, tx *txScope) error {
		return bt.Finish(report, tx.now)
	})
}

func validateReport(report domain.WorkReport) error {
	missing := []string{}
	if report.RemedyCode == "" {
		missing = append(missing, "remedy_code")
	}
	if report.RemedyDescription == "" {
		missing = append(missing, "remedy_description")
	}
	if report.Result == "" {
		missing = append(missing, "result")
	}
	if report.ConfirmedFaultCode == "" {
		missing = append(missing, "confirmed_fault_code")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("required fields missing", map[string]any{"fields": missing})
	}
	return nil
}

func (s *ExecutionService) transition(ctx context.Context, actor domain.Actor, op Operation, workOrderID string, action domain.HistoryAction, apply func(*domain.WorkOrder, *txScope) error) (*domain.WorkOrder, error) {
	rootID, err := s.rootOfWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	var result *domain.WorkOrder
	err = s.mutate(ctx, actor, rootID, func(ctx context.Context, tx *txScope) error {
		bt, err := tx.repos.WorkOrders.GetByID(ctx, workOrderID)
		if err != nil {
			return lookupError(err, "work order", workOrderID)
		}
		if err := requireAssignee(actor, op, bt.TechnicianID == actor.ID); err != nil {
			return err
		}
		oldState := bt.State
		if err := apply(bt, tx); err != nil {
			return transitionError(err, map[string]any{"work_order_id": bt.ID, "state": bt.State})
		}
		if err := tx.repos.WorkOrders.Update(ctx, bt); err != nil {
			return err
		}
		if err := tx.record(ctx, domain.EntityWorkOrder, bt.ID, action,
			map[string]any{"state": oldState},
			workOrderSnapshot(bt)); err != nil {
			return err
		}
		tx.emit(events.EventWorkOrderStateChanged, events.WorkOrderStateChangedPayload{
			WorkOrderID: bt.ID,
			NumBT:       bt.NumBT,
			OldState:    oldState,
			NewState:    bt.State,
		})
		result = bt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CloseWorkOrder closes a FINISHED work order and resolves the parent ticket in the same
// transaction, copying the work order result into the ticket solution. Closing an already
// closed work order returns it together with an ALREADY_CLOSED notice and changes nothing.
func (s *ExecutionService) CloseWorkOrder(ctx context.Context, actor domain.Actor, workOrderID string) (*domain.WorkOrder, error) {
	if err := authorize(actor, OpCloseWorkOrder); err != nil {
		return nil, err
	}
	rootID, err := s.rootOfWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	var result *domain.WorkOrder
	err = s.mutate(ctx, actor, rootID, func(ctx context.Context, tx *txScope) error {
		bt, err := tx.repos.WorkOrders.GetByID(ctx, workOrderID)
		if err != nil {
			return lookupError(err, "work order", workOrderID)
		}
		result = bt
		if bt.Closed() {
			return apperrors.NewAlreadyClosed("work order already closed", map[string]any{
				"work_order_id": bt.ID,
				"closed_at":     bt.ClosedAt,
			})
		}
		oldState := bt.State
		if err := bt.Close(actor.ID, tx.now); err != nil {
			return transitionError(err, map[string]any{"work_order_id": bt.ID, "state": bt.State})
		}

		rec, err := tx.repos.Reclamations.GetByID(ctx, tx.reclamationID)
		if err != nil {
			return apperrors.NewStorageConflict("ticket resolution failed", err)
		}
		oldStatus := rec.Status
		if err := rec.Resolve(bt.Result, tx.now); err != nil {
			return apperrors.NewInvalidState(err.Error(), map[string]any{"ticket_id": rec.ID, "status": rec.Status})
		}

		if err := tx.repos.WorkOrders.Update(ctx, bt); err != nil {
			return apperrors.NewStorageConflict("work order close failed", err)
		}
		if err := tx.repos.Reclamations.Update(ctx, rec); err != nil {
			return apperrors.NewStorageConflict("ticket resolution failed", err)
		}

		if err := tx.record(ctx, domain.EntityWorkOrder, bt.ID, domain.ActionWorkOrderClosed,
			map[string]any{"state": oldState},
			workOrderSnapshot(bt)); err != nil {
			return apperrors.NewStorageConflict("work order close failed", err)
		}
		if err := tx.record(ctx, domain.EntityReclamation, rec.ID, domain.ActionTicketResolved,
			map[string]any{"status": oldStatus},
			map[string]any{"status": rec.Status, "solution": bt.Result, "work_order_id": bt.ID}); err != nil {
			return apperrors.NewStorageConflict("ticket resolution failed", err)
		}
		tx.emit(events.EventWorkOrderStateChanged, events.WorkOrderStateChangedPayload{
			WorkOrderID: bt.ID,
			NumBT:       bt.NumBT,
			OldState:    oldState,
			NewState:    bt.State,
		})
		tx.emit(events.EventTicketResolved, events.TicketResolvedPayload{
			WorkOrderID: bt.ID,
			Solution:    bt.Result,
			ResolvedAt:  tx.now,
		})
		return nil
	})
	if err != nil {
		if apperrors.IsAlreadyClosed(err) {
			return result, err
		}
		return nil, err
	}
	return result, nil
}

func workOrderSnapshot(bt *domain.WorkOrder) map[string]any {
	snapshot := map[string]any{"state": bt.State}
	if bt.StartedAt != nil {
		snapshot["started_at"] = *bt.StartedAt
	}
	if bt.FinishedAt != nil {
		snapshot["finished_at"] = *bt.FinishedAt
		snapshot["remedy_code"] = bt.RemedyCode
		snapshot["result"] = bt.Result
	}
	if bt.ClosedAt != nil {
		snapshot["closed_at"] = *bt.ClosedAt
	}
	return snapshot
}
