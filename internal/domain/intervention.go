package domain

import "time"

// Intervention is a diagnostic request (DI) raised against a reclamation.
type Intervention struct {
	ID               string
	NumDI            int64
	ReclamationID    string
	FaultDescription string
	SymptomCode      string
	EquipmentRef     *string
	DiagnosticNotes  string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Assignment links an intervention to one technician (EquipDi). Rows are append-only.
type Assignment struct {
	NumDI          int64
	SequenceID     int
	InterventionID string
	TechnicianID   string
	AssignedBy     string
	AssignedAt     time.Time
}

// HasTechnician reports whether technicianID appears in the assignment log.
func HasTechnician(assignments []Assignment, technicianID string) bool {
	for _, a := range assignments {
		if a.TechnicianID == technicianID {
			return true
		}
	}
	return false
}
