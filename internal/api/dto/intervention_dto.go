package dto

import (
	"time"

	"github.com/spec-kit/sav-service/internal/domain"
)

// CreateInterventionRequest payload.
type CreateInterventionRequest struct {
	FaultDescription string  `json:"fault_description"`
	SymptomCode      string  `json:"symptom_code"`
	EquipmentRef     *string `json:"equipment_ref"`
}

// UpdateNotesRequest payload.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// CreateWorkOrderRequest payload.
type CreateWorkOrderRequest struct {
	TechnicianID string `json:"technician_id"`
}

// FinishWorkRequest carries the technician's report.
type FinishWorkRequest struct {
	RemedyCode         string `json:"remedy_code"`
	RemedyDescription  string `json:"remedy_description"`
	Result             string `json:"result"`
	ConfirmedFaultCode string `json:"confirmed_fault_code"`
}

// InterventionResponse describes a DI with its staffing and work orders.
type InterventionResponse struct {
	ID               string               `json:"id"`
	NumDI            int64                `json:"num_di"`
	TicketID         string               `json:"ticket_id"`
	FaultDescription string               `json:"fault_description"`
	SymptomCode      string               `json:"symptom_code"`
	EquipmentRef     *string              `json:"equipment_ref"`
	DiagnosticNotes  string               `json:"diagnostic_notes"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Technicians      []AssignmentResponse `json:"technicians,omitempty"`
	WorkOrders       []WorkOrderResponse  `json:"work_orders,omitempty"`
}

// AssignmentResponse is one EquipDi row.
type AssignmentResponse struct {
	InterventionID string    `json:"intervention_id"`
	NumDI          int64     `json:"num_di"`
	SequenceID     int       `json:"sequence_id"`
	TechnicianID   string    `json:"technician_id"`
	AssignedBy     string    `json:"assigned_by"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// WorkOrderResponse describes a BT.
type WorkOrderResponse struct {
	ID                 string                `json:"id"`
	NumBT              int64                 `json:"num_bt"`
	InterventionID     string                `json:"intervention_id"`
	NumDI              int64                 `json:"num_di"`
	TechnicianID       string                `json:"technician_id"`
	State              domain.WorkOrderState `json:"state"`
	InProgress         bool                  `json:"in_progress"`
	Closed             bool                  `json:"closed"`
	FaultDescription   string                `json:"fault_description"`
	ConfirmedFaultCode string                `json:"confirmed_fault_code,omitempty"`
	RemedyCode         string                `json:"remedy_code,omitempty"`
	RemedyDescription  string                `json:"remedy_description,omitempty"`
	Result             string                `json:"result,omitempty"`
	StartedAt          *time.Time            `json:"started_at"`
	FinishedAt         *time.Time            `json:"finished_at"`
	ClosedAt           *time.Time            `json:"closed_at"`
	ClosedBy           *string               `json:"closed_by"`
	CreatedAt          time.Time             `json:"created_at"`
}
