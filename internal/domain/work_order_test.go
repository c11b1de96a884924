package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func report() WorkReport {
	return WorkReport{RemedyCode: "R1", RemedyDescription: "swapped board", Result: "fixed", ConfirmedFaultCode: "F1"}
}

func TestWorkOrderHappyPath(t *testing.T) {
	bt := &WorkOrder{ID: "bt", State: WorkOrderCreated}
	require.NoError(t, bt.CheckInvariants())

	require.NoError(t, bt.Start(t0))
	assert.True(t, bt.InProgress())
	require.NoError(t, bt.CheckInvariants())

	require.NoError(t, bt.Finish(report(), t0.Add(time.Hour)))
	assert.False(t, bt.InProgress())
	assert.Equal(t, "fixed", bt.Result)
	require.NoError(t, bt.CheckInvariants())

	require.NoError(t, bt.Close("admin", t0.Add(2*time.Hour)))
	assert.True(t, bt.Closed())
	assert.Equal(t, "admin", *bt.ClosedBy)
	require.NoError(t, bt.CheckInvariants())
}

func TestWorkOrderRejectsSkippedOrRepeatedSteps(t *testing.T) {
	cases := []struct {
		name  string
		state WorkOrderState
		step  func(*WorkOrder) error
	}{
		{"finish before start", WorkOrderCreated, func(w *WorkOrder) error { return w.Finish(report(), t0) }},
		{"close before finish", WorkOrderStarted, func(w *WorkOrder) error { return w.Close("a", t0) }},
		{"close when created", WorkOrderCreated, func(w *WorkOrder) error { return w.Close("a", t0) }},
		{"start twice", WorkOrderStarted, func(w *WorkOrder) error { return w.Start(t0) }},
		{"restart finished", WorkOrderFinished, func(w *WorkOrder) error { return w.Start(t0) }},
		{"reopen closed", WorkOrderClosed, func(w *WorkOrder) error { return w.Start(t0) }},
		{"close closed", WorkOrderClosed, func(w *WorkOrder) error { return w.Close("a", t0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bt := &WorkOrder{State: tc.state}
			err := tc.step(bt)
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tc.state, bt.State)
		})
	}
}

func TestWorkOrderInvariantsCatchDrift(t *testing.T) {
	bt := &WorkOrder{ID: "bt", State: WorkOrderFinished, StartedAt: &t0, FinishedAt: &t0}
	assert.Error(t, bt.CheckInvariants(), "finished without remedy")

	bt = &WorkOrder{ID: "bt", State: WorkOrderCreated, StartedAt: &t0}
	assert.Error(t, bt.CheckInvariants())

	bt = &WorkOrder{ID: "bt", State: "PAUSED"}
	assert.Error(t, bt.CheckInvariants())
}

func TestReclamationLifecycle(t *testing.T) {
	rec := &Reclamation{ID: "r", Status: TicketStatusOpen}
	require.NoError(t, rec.CheckInvariants())

	assert.ErrorIs(t, rec.Resolve("x", t0), ErrIllegalTransition)

	require.NoError(t, rec.Assign("tech", t0))
	assert.Equal(t, TicketStatusInProgress, rec.Status)
	require.NoError(t, rec.CheckInvariants())
	assert.ErrorIs(t, rec.Assign("other", t0), ErrIllegalTransition)

	require.NoError(t, rec.Resolve("replaced fuse", t0.Add(time.Hour)))
	assert.Equal(t, "replaced fuse", *rec.Solution)
	require.NoError(t, rec.CheckInvariants())

	assert.ErrorIs(t, rec.Assign("tech", t0), ErrIllegalTransition)
	assert.ErrorIs(t, rec.Resolve("again", t0), ErrIllegalTransition)
}

func TestReclamationInvariantsCatchDrift(t *testing.T) {
	tech := "tech"
	assert.Error(t, (&Reclamation{Status: TicketStatusOpen, TechnicianID: &tech}).CheckInvariants())
	assert.Error(t, (&Reclamation{Status: TicketStatusInProgress}).CheckInvariants())
	assert.Error(t, (&Reclamation{Status: TicketStatusResolved, TechnicianID: &tech}).CheckInvariants())
}

func TestRolesAndPriorities(t *testing.T) {
	assert.True(t, RoleTechnician.Valid())
	assert.False(t, Role("CUSTOMER").Valid())
	assert.True(t, TicketPriorityUrgent.Valid())
	assert.False(t, TicketPriority("CRITICAL").Valid())

	assert.True(t, HasTechnician([]Assignment{{TechnicianID: "a"}, {TechnicianID: "b"}}, "b"))
	assert.False(t, HasTechnician(nil, "a"))

	assert.True(t, (&StaffMember{Role: RoleTechnician, Active: true}).IsTechnician())
	assert.False(t, (&StaffMember{Role: RoleTechnician}).IsTechnician())
	assert.False(t, (*StaffMember)(nil).IsTechnician())
}
