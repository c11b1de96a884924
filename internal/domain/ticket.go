package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition is returned when a state change is not permitted from the current state.
var ErrIllegalTransition = errors.New("illegal state transition")

// TicketStatus enumerates lifecycle states for reclamations.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// TicketPriority enumerates customer urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Reclamation is the customer ticket and the root aggregate of the workflow.
type Reclamation struct {
	ID           string
	NumTicket    int64
	CustomerRef  string
	Subject      string
	Description  string
	Category     string
	Priority     TicketPriority
	TechnicianID *string
	Status       TicketStatus
	OpenedAt     time.Time
	ResolvedAt   *time.Time
	Solution     *string
	CreatedBy    string
	UpdatedAt    time.Time
}

// Assign moves an open reclamation to IN_PROGRESS under the given technician.
func (r *Reclamation) Assign(technicianID string, now time.Time) error {
	if err := r.CanAssign(); err != nil {
		return err
	}
	r.TechnicianID = &technicianID
	r.Status = TicketStatusInProgress
	r.UpdatedAt = now
	return nil
}

// CanAssign reports whether a technician may still be assigned.
func (r *Reclamation) CanAssign() error {
	if r.Status != TicketStatusOpen {
		return fmt.Errorf("%w: assign from %s", ErrIllegalTransition, r.Status)
	}
	return nil
}

// Resolve closes the reclamation with the solution copied from the closing work order.
// Resolution is one-way; there is no path back to OPEN or IN_PROGRESS.
func (r *Reclamation) Resolve(solution string, now time.Time) error {
	if r.Status != TicketStatusInProgress {
		return fmt.Errorf("%w: resolve from %s", ErrIllegalTransition, r.Status)
	}
	r.Solution = &solution
	r.ResolvedAt = &now
	r.Status = TicketStatusResolved
	r.UpdatedAt = now
	return nil
}

// CheckInvariants verifies the field/status coupling of the aggregate root.
func (r *Reclamation) CheckInvariants() error {
	assigned := r.Status == TicketStatusInProgress || r.Status == TicketStatusResolved
	if (r.TechnicianID != nil) != assigned {
		return fmt.Errorf("reclamation %s: technician set=%t with status %s", r.ID, r.TechnicianID != nil, r.Status)
	}
	resolved := r.Status == TicketStatusResolved
	if (r.ResolvedAt != nil) != resolved || (r.Solution != nil) != resolved {
		return fmt.Errorf("reclamation %s: resolution fields inconsistent with status %s", r.ID, r.Status)
	}
	return nil
}
