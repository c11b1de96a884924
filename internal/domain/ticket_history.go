package domain

import "time"

// EntityType names which record of the aggregate a history entry refers to.
type EntityType string

const (
	EntityReclamation  EntityType = "RECLAMATION"
	EntityIntervention EntityType = "INTERVENTION"
	EntityAssignment   EntityType = "ASSIGNMENT"
	EntityWorkOrder    EntityType = "WORK_ORDER"
)

// HistoryAction captures what happened in a history entry.
type HistoryAction string

const (
	ActionTicketOpened        HistoryAction = "TICKET_OPENED"
	ActionTechnicianAssigned  HistoryAction = "TECHNICIAN_ASSIGNED"
	ActionInterventionCreated HistoryAction = "INTERVENTION_CREATED"
	ActionInterventionStaffed HistoryAction = "INTERVENTION_STAFFED"
	ActionNotesUpdated        HistoryAction = "DIAGNOSTIC_NOTES_UPDATED"
	ActionWorkOrderCreated    HistoryAction = "WORK_ORDER_CREATED"
	ActionWorkStarted         HistoryAction = "WORK_STARTED"
	ActionWorkFinished        HistoryAction = "WORK_FINISHED"
	ActionWorkOrderClosed     HistoryAction = "WORK_ORDER_CLOSED"
	ActionTicketResolved      HistoryAction = "TICKET_RESOLVED"
)

// TicketHistory is an immutable audit entry scoped to one reclamation aggregate.
type TicketHistory struct {
	ID            string
	ReclamationID string
	EntityType    EntityType
	EntityID      string
	Action        HistoryAction
	ActorID       string
	ActorRole     Role
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
