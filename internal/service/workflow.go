package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/observability"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// WorkflowDependencies bundles the collaborators shared by the workflow services.
type WorkflowDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// workflow is the engine core embedded by the ticket, intervention and execution services.
type workflow struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func newWorkflow(deps WorkflowDependencies) workflow {
	w := workflow{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Clock,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = func() time.Time { return time.Now().UTC() }
	}
	return w
}

// txScope collects the audit entries and events produced by one aggregate transaction.
type txScope struct {
	repos         repository.Repositories
	actor         domain.Actor
	reclamationID string
	now           time.Time
	actions       []domain.HistoryAction
	events        []events.Event
}

func (s *txScope) record(ctx context.Context, entity domain.EntityType, entityID string, action domain.HistoryAction, oldValue, newValue map[string]any) error {
	entry := &domain.TicketHistory{
		ReclamationID: s.reclamationID,
		EntityType:    entity,
		EntityID:      entityID,
		Action:        action,
		ActorID:       s.actor.ID,
		ActorRole:     s.actor.Role,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     s.now,
	}
	if err := s.repos.History.Create(ctx, entry); err != nil {
		return err
	}
	s.actions = append(s.actions, action)
	return nil
}

func (s *txScope) emit(eventType events.EventType, payload any) {
	s.events = append(s.events, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  s.reclamationID,
		Actor:     events.ActorFrom(s.actor),
		Timestamp: s.now,
		Payload:   payload,
	})
}

// mutate runs fn under the aggregate lock of reclamationID. Audit rows are written with the
// transition; events are published only once the transaction has committed.
func (w *workflow) mutate(ctx context.Context, actor domain.Actor, reclamationID string, fn func(ctx context.Context, tx *txScope) error) error {
	var scope *txScope
	err := w.store.WithinAggregate(ctx, reclamationID, func(ctx context.Context, repos repository.Repositories) error {
		scope = &txScope{repos: repos, actor: actor, reclamationID: reclamationID, now: w.now()}
		return fn(ctx, scope)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": reclamationID})
		}
		return storeError(err)
	}
	w.afterCommit(ctx, scope)
	return nil
}

func (w *workflow) afterCommit(ctx context.Context, scope *txScope) {
	if scope == nil {
		return
	}
	for _, action := range scope.actions {
		w.metrics.RecordTransition(string(action))
		w.logger.Info("workflow transition",
			zap.String("ticket_id", scope.reclamationID),
			zap.String("actor_id", scope.actor.ID),
			zap.String("action", string(action)))
	}
	if w.dispatcher == nil {
		return
	}
	// Handlers outlive the request; the committed change is final whatever they do.
	ctx = context.WithoutCancel(ctx)
	for _, event := range scope.events {
		if err := w.dispatcher.Publish(ctx, event); err != nil {
			w.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// rootOfIntervention resolves the owning reclamation. Parent keys never change, so an
// unlocked read is enough to find which aggregate to lock.
func (w *workflow) rootOfIntervention(ctx context.Context, interventionID string) (string, error) {
	di, err := w.store.Reader().Interventions.GetByID(ctx, interventionID)
	if err != nil {
		return "", lookupError(err, "intervention", interventionID)
	}
	return di.ReclamationID, nil
}

func (w *workflow) rootOfWorkOrder(ctx context.Context, workOrderID string) (string, error) {
	bt, err := w.store.Reader().WorkOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return "", lookupError(err, "work order", workOrderID)
	}
	return w.rootOfIntervention(ctx, bt.InterventionID)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func lookupError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return storeError(err)
}

// storeError keeps typed and context errors intact and hides everything else behind
// an internal error.
func storeError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewStorageConflict("concurrent modification", err)
	case errors.Is(err, repository.ErrLockTimeout):
		return apperrors.NewStorageConflict("ticket is busy, retry later", err)
	default:
		return apperrors.NewInternalError(err)
	}
}

// transitionError turns a rejected state change into an InvalidState error.
func transitionError(err error, details map[string]any) error {
	if errors.Is(err, domain.ErrIllegalTransition) {
		return apperrors.NewInvalidState(err.Error(), details)
	}
	return storeError(err)
}

// openInterventions returns the interventions of a reclamation not yet terminated by a
// closed work order.
func openInterventions(ctx context.Context, repos repository.Repositories, reclamationID string) ([]domain.Intervention, error) {
	all, err := repos.Interventions.ListByReclamation(ctx, reclamationID)
	if err != nil {
		return nil, err
	}
	var open []domain.Intervention
	for _, di := range all {
		closed, err := interventionClosed(ctx, repos, di.ID)
		if err != nil {
			return nil, err
		}
		if !closed {
			open = append(open, di)
		}
	}
	return open, nil
}

func interventionClosed(ctx context.Context, repos repository.Repositories, interventionID string) (bool, error) {
	orders, err := repos.WorkOrders.ListByIntervention(ctx, interventionID)
	if err != nil {
		return false, err
	}
	for _, bt := range orders {
		if bt.Closed() {
			return true, nil
		}
	}
	return false, nil
}

func loadTechnician(ctx context.Context, repos repository.Repositories, technicianID string) (*domain.StaffMember, error) {
	if technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id is required", nil)
	}
	tech, err := repos.Staff.GetByID(ctx, technicianID)
	if err != nil {
		return nil, lookupError(err, "technician", technicianID)
	}
	if !tech.IsTechnician() {
		return nil, apperrors.NewValidationError("staff member is not an active technician", map[string]any{"technician_id": technicianID})
	}
	return tech, nil
}
