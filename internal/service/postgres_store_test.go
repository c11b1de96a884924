package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/config"
	"github.com/spec-kit/sav-service/internal/domain"
	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/observability"
	"github.com/spec-kit/sav-service/internal/persistence"
	"github.com/spec-kit/sav-service/internal/repository"
	apperrors "github.com/spec-kit/sav-service/pkg/util/errorutil"
)

// SAV_TEST_POSTGRES_DSN points at a disposable database; the suite is skipped without it.
const postgresDSNEnv = "SAV_TEST_POSTGRES_DSN"

type pgHarness struct {
	t             *testing.T
	ctx           context.Context
	pool          *pgxpool.Pool
	store         repository.Store
	notifier      *recordingNotifier
	tickets       *TicketService
	interventions *InterventionService
	execution     *ExecutionService

	admin domain.Actor
	agent domain.Actor
	tech  domain.Actor
	other domain.Actor
}

func newPostgresHarness(t *testing.T) *pgHarness {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{
		DSN:               dsn,
		MaxConns:          8,
		MinConns:          1,
		LockTimeoutMillis: 300,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()))

	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, notifier, zap.NewNop()).RegisterHandlers()
	deps := WorkflowDependencies{
		Store:      repository.NewPostgresStore(pg.PoolHandle()),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    observability.NewMetrics(),
	}
	h := &pgHarness{
		t:             t,
		ctx:           ctx,
		pool:          pg.PoolHandle(),
		store:         deps.Store,
		notifier:      notifier,
		tickets:       NewTicketService(deps),
		interventions: NewInterventionService(deps),
		execution:     NewExecutionService(deps),
	}
	h.admin = h.seed("Admin", domain.RoleAdmin)
	h.agent = h.seed("Agent", domain.RoleAgent)
	h.tech = h.seed("Tech", domain.RoleTechnician)
	h.other = h.seed("Other Tech", domain.RoleTechnician)
	return h
}

func (h *pgHarness) seed(name string, role domain.Role) domain.Actor {
	h.t.Helper()
	staff := &domain.StaffMember{
		ID:     uuid.NewString(),
		Name:   name,
		Role:   role,
		Active: true,
	}
	staff.Email = staff.ID + "@sav.test"
	require.NoError(h.t, h.store.Reader().Staff.Create(h.ctx, staff))
	return domain.Actor{ID: staff.ID, Role: role}
}

func (h *pgHarness) open() *domain.Reclamation {
	h.t.Helper()
	rec, err := h.tickets.OpenTicket(h.ctx, h.agent, TicketOpenInput{
		CustomerRef: "CLI-PG",
		Subject:     "Scanner offline",
		Description: "No power on scanner",
		Category:    "SCANNER",
		Priority:    domain.TicketPriorityMedium,
	})
	require.NoError(h.t, err)
	return rec
}

func (h *pgHarness) workOrder() (*domain.Reclamation, *domain.Intervention, *domain.WorkOrder) {
	h.t.Helper()
	rec := h.open()
	_, err := h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, h.tech.ID)
	require.NoError(h.t, err)
	view, err := h.tickets.GetTicket(h.ctx, h.admin, rec.ID)
	require.NoError(h.t, err)
	require.Len(h.t, view.Interventions, 1)
	di := view.Interventions[0].Intervention
	_, err = h.interventions.AssignTechnicianToIntervention(h.ctx, h.admin, di.ID, h.tech.ID)
	require.NoError(h.t, err)
	bt, err := h.interventions.CreateWorkOrder(h.ctx, h.admin, di.ID, h.tech.ID)
	require.NoError(h.t, err)
	return rec, &di, bt
}

func TestPostgresWorkflowResolvesTicket(t *testing.T) {
	h := newPostgresHarness(t)
	rec, di, bt := h.workOrder()

	_, err := h.interventions.AssignTechnicianToIntervention(h.ctx, h.admin, di.ID, h.other.ID)
	require.NoError(t, err)
	assignments, err := h.store.Reader().Assignments.ListByIntervention(h.ctx, di.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, 1, assignments[0].SequenceID)
	assert.Equal(t, 2, assignments[1].SequenceID)
	assert.Equal(t, di.NumDI, assignments[1].NumDI)

	_, err = h.execution.StartWork(h.ctx, h.tech, bt.ID)
	require.NoError(t, err)
	_, err = h.execution.FinishWork(h.ctx, h.tech, bt.ID, FinishInput{
		RemedyCode:        "PSU",
		RemedyDescription: "Power supply swapped",
		Result:            "Scanner powers on",
	})
	require.NoError(t, err)
	closed, err := h.execution.CloseWorkOrder(h.ctx, h.admin, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderClosed, closed.State)

	_, err = h.execution.CloseWorkOrder(h.ctx, h.admin, bt.ID)
	assert.True(t, apperrors.IsAlreadyClosed(err))

	resolved, err := h.store.Reader().Reclamations.GetByID(h.ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Solution)
	assert.Equal(t, "Scanner powers on", *resolved.Solution)
	assert.NoError(t, resolved.CheckInvariants())

	history, err := h.tickets.History(h.ctx, h.admin, rec.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, domain.ActionTicketOpened, history[0].Action)
	assert.Equal(t, domain.ActionTicketResolved, history[len(history)-1].Action)

	second := h.open()
	assert.Greater(t, second.NumTicket, rec.NumTicket)
}

func TestPostgresMalformedIDsAreNotFound(t *testing.T) {
	h := newPostgresHarness(t)
	rec := h.open()

	_, err := h.tickets.GetTicket(h.ctx, h.admin, "abc")
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
	_, err = h.tickets.AssignTechnician(h.ctx, h.admin, "abc", h.tech.ID)
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
	_, err = h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, "5")
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
	_, err = h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, uuid.NewString())
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
	_, err = h.interventions.AssignTechnicianToIntervention(h.ctx, h.admin, "di-1", h.tech.ID)
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
	_, err = h.execution.StartWork(h.ctx, h.tech, "bt-1")
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))

	unchanged, err := h.store.Reader().Reclamations.GetByID(h.ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, unchanged.Status)
}

func TestPostgresConcurrentStartHasOneWinner(t *testing.T) {
	h := newPostgresHarness(t)
	_, _, bt := h.workOrder()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, actor := range []domain.Actor{h.admin, h.tech} {
		wg.Add(1)
		go func(actor domain.Actor) {
			defer wg.Done()
			_, err := h.execution.StartWork(context.Background(), actor, bt.ID)
			results <- err
		}(actor)
	}
	wg.Wait()
	close(results)

	var ok, invalid int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case apperrors.IsCode(err, apperrors.CodeInvalidState):
			invalid++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)
}

func TestPostgresLockTimeoutIsConflict(t *testing.T) {
	h := newPostgresHarness(t)
	rec := h.open()

	held, err := h.pool.BeginTx(h.ctx, pgx.TxOptions{})
	require.NoError(t, err)
	defer func() { _ = held.Rollback(h.ctx) }()
	var id string
	require.NoError(t, held.QueryRow(h.ctx, `SELECT id FROM reclamations WHERE id=$1 FOR UPDATE`, rec.ID).Scan(&id))

	started := time.Now()
	_, err = h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, h.tech.ID)
	assert.Equal(t, apperrors.CodeConflict, codeOf(err))
	assert.Less(t, time.Since(started), 5*time.Second)
	require.NoError(t, held.Rollback(h.ctx))

	_, err = h.tickets.AssignTechnician(h.ctx, h.admin, rec.ID, h.tech.ID)
	require.NoError(t, err)
	assigned, _ := h.notifier.counts()
	assert.Equal(t, 1, assigned)
}
