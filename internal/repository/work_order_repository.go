package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sav-service/internal/domain"
)

// WorkOrderRepository persists work orders (BT).
type WorkOrderRepository interface {
	Create(ctx context.Context, bt *domain.WorkOrder) error
	Update(ctx context.Context, bt *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	ListByIntervention(ctx context.Context, interventionID string) ([]domain.WorkOrder, error)
}

type workOrderRepository struct {
	db DBTX
}

// NewWorkOrderRepository instantiates repository.
func NewWorkOrderRepository(db DBTX) WorkOrderRepository {
	return &workOrderRepository{db: db}
}

const workOrderColumns = `id, num_bt, intervention_id, num_di, technician_id, fault_description,
               confirmed_fault_code, remedy_code, remedy_description, result, state,
               started_at, finished_at, closed_at, closed_by, created_by, created_at, updated_at`

func (r *workOrderRepository) Create(ctx context.Context, bt *domain.WorkOrder) error {
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO work_orders (id, intervention_id, num_di, technician_id, fault_description, state, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING num_bt, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		bt.ID,
		bt.InterventionID,
		bt.NumDI,
		bt.TechnicianID,
		bt.FaultDescription,
		bt.State,
		bt.CreatedBy,
	).Scan(&bt.NumBT, &bt.CreatedAt, &bt.UpdatedAt)
	return translate(err)
}

// Update refuses to touch a row that is already CLOSED.
func (r *workOrderRepository) Update(ctx context.Context, bt *domain.WorkOrder) error {
	if !validID(bt.ID) {
		return ErrNotFound
	}
	const query = `
        UPDATE work_orders SET confirmed_fault_code=$1, remedy_code=$2, remedy_description=$3, result=$4,
            state=$5, started_at=$6, finished_at=$7, closed_at=$8, closed_by=$9, updated_at=NOW()
        WHERE id=$10 AND state <> 'CLOSED'`
	cmd, err := r.db.Exec(ctx, query,
		bt.ConfirmedFaultCode,
		bt.RemedyCode,
		bt.RemedyDescription,
		bt.Result,
		bt.State,
		bt.StartedAt,
		bt.FinishedAt,
		bt.ClosedAt,
		bt.ClosedBy,
		bt.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id=$1`, id)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	result, err := scanWorkOrders(rows)
	if err != nil {
		return nil, translate(err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}

func (r *workOrderRepository) ListByIntervention(ctx context.Context, interventionID string) ([]domain.WorkOrder, error) {
	if !validID(interventionID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE intervention_id=$1 ORDER BY num_bt ASC`, interventionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	result, err := scanWorkOrders(rows)
	return result, translate(err)
}

func scanWorkOrders(rows pgx.Rows) ([]domain.WorkOrder, error) {
	var result []domain.WorkOrder
	for rows.Next() {
		var bt domain.WorkOrder
		if err := rows.Scan(
			&bt.ID,
			&bt.NumBT,
			&bt.InterventionID,
			&bt.NumDI,
			&bt.TechnicianID,
			&bt.FaultDescription,
			&bt.ConfirmedFaultCode,
			&bt.RemedyCode,
			&bt.RemedyDescription,
			&bt.Result,
			&bt.State,
			&bt.StartedAt,
			&bt.FinishedAt,
			&bt.ClosedAt,
			&bt.ClosedBy,
			&bt.CreatedBy,
			&bt.CreatedAt,
			&bt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, bt)
	}
	return result, rows.Err()
}
