package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sav-service/internal/domain"
)

// InterventionRepository persists diagnostic requests (DI).
type InterventionRepository interface {
	Create(ctx context.Context, di *domain.Intervention) error
	UpdateNotes(ctx context.Context, id, notes string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Intervention, error)
	ListByReclamation(ctx context.Context, reclamationID string) ([]domain.Intervention, error)
}

type interventionRepository struct {
	db DBTX
}

// NewInterventionRepository instantiates repository.
func NewInterventionRepository(db DBTX) InterventionRepository {
	return &interventionRepository{db: db}
}

func (r *interventionRepository) Create(ctx context.Context, di *domain.Intervention) error {
	if di.ID == "" {
		di.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO interventions (id, reclamation_id, fault_description, symptom_code, equipment_ref, diagnostic_notes, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING num_di, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		di.ID,
		di.ReclamationID,
		di.FaultDescription,
		di.SymptomCode,
		di.EquipmentRef,
		di.DiagnosticNotes,
		di.CreatedBy,
	).Scan(&di.NumDI, &di.CreatedAt, &di.UpdatedAt)
	return translate(err)
}

func (r *interventionRepository) UpdateNotes(ctx context.Context, id, notes string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE interventions SET diagnostic_notes=$1, updated_at=$2 WHERE id=$3`, notes, at, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *interventionRepository) GetByID(ctx context.Context, id string) (*domain.Intervention, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, num_di, reclamation_id, fault_description, symptom_code, equipment_ref,
               diagnostic_notes, created_by, created_at, updated_at
        FROM interventions WHERE id=$1`
	var di domain.Intervention
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&di.ID,
		&di.NumDI,
		&di.ReclamationID,
		&di.FaultDescription,
		&di.SymptomCode,
		&di.EquipmentRef,
		&di.DiagnosticNotes,
		&di.CreatedBy,
		&di.CreatedAt,
		&di.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &di, nil
}

func (r *interventionRepository) ListByReclamation(ctx context.Context, reclamationID string) ([]domain.Intervention, error) {
	if !validID(reclamationID) {
		return nil, nil
	}
	const query = `
        SELECT id, num_di, reclamation_id, fault_description, symptom_code, equipment_ref,
               diagnostic_notes, created_by, created_at, updated_at
        FROM interventions WHERE reclamation_id=$1 ORDER BY num_di ASC`
	rows, err := r.db.Query(ctx, query, reclamationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Intervention
	for rows.Next() {
		var di domain.Intervention
		if err := rows.Scan(
			&di.ID,
			&di.NumDI,
			&di.ReclamationID,
			&di.FaultDescription,
			&di.SymptomCode,
			&di.EquipmentRef,
			&di.DiagnosticNotes,
			&di.CreatedBy,
			&di.CreatedAt,
			&di.UpdatedAt,
		); err != nil {
			return nil, translate(err)
		}
		result = append(result, di)
	}
	return result, translate(rows.Err())
}

// AssignmentRepository persists the append-only technician assignment log (EquipDi).
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	ListByIntervention(ctx context.Context, interventionID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Create allocates the next sequence number within the intervention. Callers hold the
// aggregate lock.
func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO intervention_assignments (num_di, sequence_id, intervention_id, technician_id, assigned_by)
        SELECT $1, COALESCE(MAX(sequence_id), 0) + 1, $2, $3, $4
        FROM intervention_assignments WHERE intervention_id=$2
        RETURNING sequence_id, assigned_at`
	err := r.db.QueryRow(ctx, query,
		assignment.NumDI,
		assignment.InterventionID,
		assignment.TechnicianID,
		assignment.AssignedBy,
	).Scan(&assignment.SequenceID, &assignment.AssignedAt)
	return translate(err)
}

func (r *assignmentRepository) ListByIntervention(ctx context.Context, interventionID string) ([]domain.Assignment, error) {
	if !validID(interventionID) {
		return nil, nil
	}
	const query = `
        SELECT num_di, sequence_id, intervention_id, technician_id, assigned_by, assigned_at
        FROM intervention_assignments WHERE intervention_id=$1 ORDER BY sequence_id ASC`
	rows, err := r.db.Query(ctx, query, interventionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.NumDI,
			&a.SequenceID,
			&a.InterventionID,
			&a.TechnicianID,
			&a.AssignedBy,
			&a.AssignedAt,
		); err != nil {
			return nil, translate(err)
		}
		result = append(result, a)
	}
	return result, translate(rows.Err())
}
