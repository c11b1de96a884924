package events

import (
	"time"

	"github.com/spec-kit/sav-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened          EventType = "ticket_opened"
	EventTechnicianAssigned    EventType = "technician_assigned"
	EventInterventionCreated   EventType = "intervention_created"
	EventWorkOrderStateChanged EventType = "work_order_state_changed"
	EventTicketResolved        EventType = "ticket_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// ActorFrom converts the engine caller into event metadata.
func ActorFrom(a domain.Actor) Actor {
	return Actor{ID: a.ID, Role: a.Role}
}

// Event represents a committed lifecycle change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	NumTicket   int64                 `json:"num_ticket"`
	CustomerRef string                `json:"customer_ref"`
	Priority    domain.TicketPriority `json:"priority"`
	Subject     string                `json:"subject"`
}

// TechnicianAssignedPayload payload.
type TechnicianAssignedPayload struct {
	TechnicianID   string `json:"technician_id"`
	InterventionID string `json:"intervention_id"`
	NumDI          int64  `json:"num_di"`
}

// InterventionCreatedPayload payload.
type InterventionCreatedPayload struct {
	InterventionID string `json:"intervention_id"`
	NumDI          int64  `json:"num_di"`
}

// WorkOrderStateChangedPayload payload.
type WorkOrderStateChangedPayload struct {
	WorkOrderID string                `json:"work_order_id"`
	NumBT       int64                 `json:"num_bt"`
	OldState    domain.WorkOrderState `json:"old_state,omitempty"`
	NewState    domain.WorkOrderState `json:"new_state"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	WorkOrderID string    `json:"work_order_id"`
	Solution    string    `json:"solution"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
