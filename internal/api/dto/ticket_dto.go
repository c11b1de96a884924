package dto

import (
	"time"

	"github.com/spec-kit/sav-service/internal/domain"
)

// OpenTicketRequest payload.
type OpenTicketRequest struct {
	CustomerRef string                `json:"customer_ref"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// AssignTechnicianRequest payload shared by ticket and intervention assignment.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	NumTicket    int64                 `json:"num_ticket"`
	CustomerRef  string                `json:"customer_ref"`
	Subject      string                `json:"subject"`
	Category     string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	TechnicianID *string               `json:"technician_id"`
	OpenedAt     time.Time             `json:"opened_at"`
	ResolvedAt   *time.Time            `json:"resolved_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides the whole aggregate.
type TicketDetailResponse struct {
	TicketSummary
	Description    string                 `json:"description"`
	Solution       *string                `json:"solution"`
	TechnicianName string                 `json:"technician_name,omitempty"`
	Interventions  []InterventionResponse `json:"interventions"`
	Resolution     *WorkOrderResponse     `json:"resolution"`
}

// HistoryEntryResponse is one audit row.
type HistoryEntryResponse struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	ActorRole  domain.Role    `json:"actor_role"`
	OldValue   map[string]any `json:"old_value,omitempty"`
	NewValue   map[string]any `json:"new_value,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
