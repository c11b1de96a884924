package domain

import (
	"fmt"
	"time"
)

// WorkOrderState is the explicit lifecycle of a work order (BT).
type WorkOrderState string

const (
	WorkOrderCreated  WorkOrderState = "CREATED"
	WorkOrderStarted  WorkOrderState = "STARTED"
	WorkOrderFinished WorkOrderState = "FINISHED"
	WorkOrderClosed   WorkOrderState = "CLOSED"
)

// WorkOrder is the job a technician executes and reports against.
type WorkOrder struct {
	ID                 string
	NumBT              int64
	InterventionID     string
	NumDI              int64
	TechnicianID       string
	FaultDescription   string
	ConfirmedFaultCode string
	RemedyCode         string
	RemedyDescription  string
	Result             string
	State              WorkOrderState
	StartedAt          *time.Time
	FinishedAt         *time.Time
	ClosedAt           *time.Time
	ClosedBy           *string
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WorkReport carries the fields a technician fills in when finishing.
type WorkReport struct {
	RemedyCode         string
	RemedyDescription  string
	Result             string
	ConfirmedFaultCode string
}

// InProgress mirrors the legacy "en cours" flag.
func (w *WorkOrder) InProgress() bool {
	return w.State == WorkOrderStarted
}

// Closed mirrors the legacy "clôturé" flag.
func (w *WorkOrder) Closed() bool {
	return w.State == WorkOrderClosed
}

// Start moves CREATED -> STARTED.
func (w *WorkOrder) Start(now time.Time) error {
	switch w.State {
	case WorkOrderCreated:
		w.StartedAt = &now
		w.State = WorkOrderStarted
		w.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: start from %s", ErrIllegalTransition, w.State)
	}
}

// Finish moves STARTED -> FINISHED and records the technician's report.
func (w *WorkOrder) Finish(report WorkReport, now time.Time) error {
	switch w.State {
	case WorkOrderStarted:
		w.RemedyCode = report.RemedyCode
		w.RemedyDescription = report.RemedyDescription
		w.Result = report.Result
		w.ConfirmedFaultCode = report.ConfirmedFaultCode
		w.FinishedAt = &now
		w.State = WorkOrderFinished
		w.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: finish from %s", ErrIllegalTransition, w.State)
	}
}

// Close moves FINISHED -> CLOSED. CLOSED is terminal.
func (w *WorkOrder) Close(closedBy string, now time.Time) error {
	switch w.State {
	case WorkOrderFinished:
		w.ClosedAt = &now
		w.ClosedBy = &closedBy
		w.State = WorkOrderClosed
		w.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: close from %s", ErrIllegalTransition, w.State)
	}
}

// CheckInvariants verifies that the timestamps and report fields match the state reached.
func (w *WorkOrder) CheckInvariants() error {
	reached := map[WorkOrderState]int{
		WorkOrderCreated:  0,
		WorkOrderStarted:  1,
		WorkOrderFinished: 2,
		WorkOrderClosed:   3,
	}
	level, ok := reached[w.State]
	if !ok {
		return fmt.Errorf("work order %s: unknown state %q", w.ID, w.State)
	}
	if (w.StartedAt != nil) != (level >= 1) {
		return fmt.Errorf("work order %s: start timestamp inconsistent with %s", w.ID, w.State)
	}
	if (w.FinishedAt != nil) != (level >= 2) {
		return fmt.Errorf("work order %s: finish timestamp inconsistent with %s", w.ID, w.State)
	}
	if level >= 2 && (w.RemedyCode == "" || w.RemedyDescription == "") {
		return fmt.Errorf("work order %s: finished without remedy", w.ID)
	}
	if (w.ClosedAt != nil) != (level == 3) {
		return fmt.Errorf("work order %s: close timestamp inconsistent with %s", w.ID, w.State)
	}
	return nil
}
