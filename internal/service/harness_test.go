package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/observability"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	assigned []string
	resolved []string
	err      error
}

func (r *recordingNotifier) NotifyAssigned(_ context.Context, ticketID, technicianID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, ticketID+"/"+technicianID)
	return r.err
}

func (r *recordingNotifier) NotifyResolved(_ context.Context, ticketID, solution string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, ticketID+"/"+solution)
	return r.err
}

func (r *recordingNotifier) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assigned), len(r.resolved)
}

type harness struct {
	t             *testing.T
	ctx           context.Context
	store         *repository.MemoryStore
	notifier      *recordingNotifier
	metrics       *observability.Metrics
	tickets       *TicketService
	interventions *InterventionService
	execution     *ExecutionService

	admin     domain.Actor
	agent     domain.Actor
	tech      domain.Actor
	otherTech domain.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	h := buildHarness(t, store, store)
	h.seedStaff("5", "Tech Five", domain.RoleTechnician, true)
	h.seedStaff("6", "Tech Six", domain.RoleTechnician, true)
	h.seedStaff("7", "Retired Tech", domain.RoleTechnician, false)
	h.seedStaff("agent-1", "Agent One", domain.RoleAgent, true)
	return h
}

// over returns a harness sharing h's data but running the services on store.
func (h *harness) over(store repository.Store) *harness {
	return buildHarness(h.t, h.store, store)
}

func buildHarness(t *testing.T, mem *repository.MemoryStore, store repository.Store) *harness {
	t.Helper()
	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, notifier, zap.NewNop()).RegisterHandlers()

	metrics := observability.NewMetrics()
	deps := WorkflowDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    metrics,
		Clock:      func() time.Time { return fixedNow },
	}
	return &harness{
		t:             t,
		ctx:           context.Background(),
		store:         mem,
		notifier:      notifier,
		metrics:       metrics,
		tickets:       NewTicketService(deps),
		interventions: NewInterventionService(deps),
		execution:     NewExecutionService(deps),
		admin:         domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
		agent:         domain.Actor{ID: "agent-1", Role: domain.RoleAgent},
		tech:          domain.Actor{ID: "5", Role: domain.RoleTechnician},
		otherTech:     domain.Actor{ID: "6", Role: domain.RoleTechnician},
	}
}

func (h *harness) seedStaff(id, name string, role domain.Role, active bool) {
	h.t.Helper()
	err := h.store.Reader().Staff.Create(h.ctx, &domain.StaffMember{
		ID:     id,
		Name:   name,
		Email:  id + "@sav.test",
		Role:   role,
		Active: active,
	})
	require.NoError(h.t, err)
}

func (h *harness) open() *domain.Reclamation {
	h.t.Helper()
	rec, err := h.tickets.OpenTicket(h.ctx, h.agent, TicketOpenInput{
		CustomerRef: "CLI1",
		Subject:     "Printer down",
		Description: "Paper jam light blinking",
		Category:    "PRINTER",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(h.t, err)
	return rec
}

// assigned opens a ticket, assigns technician 5 and returns the auto-created DI.
func (h *harness) assigned() (*domain.Reclamation, domain.Intervention) {
	h.t.Helper()
	rec := h.open()
	rec, err := h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, h.tech.ID)
	require.NoError(h.t, err)
	view, err := h.tickets.GetTicket(h.ctx, h.admin, rec.ID)
	require.NoError(h.t, err)
	require.Len(h.t, view.Interventions, 1)
	return rec, view.Interventions[0].Intervention
}

// workOrder runs the flow up to a CREATED work order for technician 5.
func (h *harness) workOrder() (*domain.Reclamation, domain.Intervention, *domain.WorkOrder) {
	h.t.Helper()
	rec, di := h.assigned()
	_, err := h.interventions.AssignTechnicianToIntervention(h.ctx, h.admin, di.ID, h.tech.ID)
	require.NoError(h.t, err)
	bt, err := h.interventions.CreateWorkOrder(h.ctx, h.admin, di.ID, h.tech.ID)
	require.NoError(h.t, err)
	return rec, di, bt
}

// finished runs the flow up to a FINISHED work order.
func (h *harness) finished() (*domain.Reclamation, *domain.WorkOrder) {
	h.t.Helper()
	rec, _, bt := h.workOrder()
	_, err := h.execution.StartWork(h.ctx, h.tech, bt.ID)
	require.NoError(h.t, err)
	bt, err = h.execution.FinishWork(h.ctx, h.tech, bt.ID, FinishInput{
		RemedyCode:         "RPL-CART",
		RemedyDescription:  "Cartridge replaced",
		Result:             "Cartridge replaced, test page printed",
		ConfirmedFaultCode: "CART-EMPTY",
	})
	require.NoError(h.t, err)
	return rec, bt
}

func (h *harness) ticket(id string) *domain.Reclamation {
	h.t.Helper()
	rec, err := h.store.Reader().Reclamations.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return rec
}

func (h *harness) workOrderByID(id string) *domain.WorkOrder {
	h.t.Helper()
	bt, err := h.store.Reader().WorkOrders.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return bt
}

func (h *harness) countActions(ticketID string, action domain.HistoryAction) int {
	h.t.Helper()
	entries, err := h.store.Reader().History.ListByReclamation(h.ctx, ticketID)
	require.NoError(h.t, err)
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func codeOf(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.ToDomainError(err).Code
}

// failingStore breaks one repository for every transaction run under an aggregate lock.
type failingStore struct {
	*repository.MemoryStore
	failHistory bool
}

func (f *failingStore) WithinAggregate(ctx context.Context, id string, fn repository.TxFunc) error {
	return f.MemoryStore.WithinAggregate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		if f.failHistory {
			repos.History = failingHistory{TicketHistoryRepository: repos.History}
		} else {
			repos.Reclamations = failingReclamations{ReclamationRepository: repos.Reclamations}
		}
		return fn(ctx, repos)
	})
}

type failingReclamations struct {
	repository.ReclamationRepository
}

func (failingReclamations) Update(context.Context, *domain.Reclamation) error {
	return errors.New("disk full")
}

type failingHistory struct {
	repository.TicketHistoryRepository
}

func (failingHistory) Create(context.Context, *domain.TicketHistory) error {
	return errors.New("disk full")
}
