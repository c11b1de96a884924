package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sav-service/internal/domain"
)

// ReclamationFilter captures listing parameters.
type ReclamationFilter struct {
	Statuses     []domain.TicketStatus
	TechnicianID *string
	CustomerRef  *string
	Limit        int
	Offset       int
}

// ReclamationRepository encapsulates reclamation persistence.
type ReclamationRepository interface {
	Create(ctx context.Context, rec *domain.Reclamation) error
	Update(ctx context.Context, rec *domain.Reclamation) error
	GetByID(ctx context.Context, id string) (*domain.Reclamation, error)
	List(ctx context.Context, filter ReclamationFilter) ([]domain.Reclamation, error)
}

type reclamationRepository struct {
	db DBTX
}

// NewReclamationRepository instantiates repository.
func NewReclamationRepository(db DBTX) ReclamationRepository {
	return &reclamationRepository{db: db}
}

const reclamationColumns = `id, num_ticket, customer_ref, subject, description, category, priority,
               technician_id, status, opened_at, resolved_at, solution, created_by, updated_at`

func (r *reclamationRepository) Create(ctx context.Context, rec *domain.Reclamation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO reclamations (id, customer_ref, subject, description, category, priority, technician_id, status, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING num_ticket, opened_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.CustomerRef,
		rec.Subject,
		rec.Description,
		rec.Category,
		rec.Priority,
		rec.TechnicianID,
		rec.Status,
		rec.CreatedBy,
	).Scan(&rec.NumTicket, &rec.OpenedAt, &rec.UpdatedAt)
	return translate(err)
}

func (r *reclamationRepository) Update(ctx context.Context, rec *domain.Reclamation) error {
	if !validID(rec.ID) {
		return ErrNotFound
	}
	const query = `
        UPDATE reclamations SET technician_id=$1, status=$2, resolved_at=$3, solution=$4, priority=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		rec.TechnicianID,
		rec.Status,
		rec.ResolvedAt,
		rec.Solution,
		rec.Priority,
		rec.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reclamationRepository) GetByID(ctx context.Context, id string) (*domain.Reclamation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + reclamationColumns + ` FROM reclamations WHERE id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	result, err := scanReclamations(rows)
	if err != nil {
		return nil, translate(err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}

func (r *reclamationRepository) List(ctx context.Context, filter ReclamationFilter) ([]domain.Reclamation, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		if !validID(*filter.TechnicianID) {
			return nil, nil
		}
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.CustomerRef != nil {
		args = append(args, *filter.CustomerRef)
		clauses = append(clauses, fmt.Sprintf("customer_ref=$%d", len(args)))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM reclamations WHERE %s ORDER BY num_ticket DESC LIMIT %d OFFSET %d`,
		reclamationColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	result, err := scanReclamations(rows)
	return result, translate(err)
}

func scanReclamations(rows pgx.Rows) ([]domain.Reclamation, error) {
	var result []domain.Reclamation
	for rows.Next() {
		var rec domain.Reclamation
		if err := rows.Scan(
			&rec.ID,
			&rec.NumTicket,
			&rec.CustomerRef,
			&rec.Subject,
			&rec.Description,
			&rec.Category,
			&rec.Priority,
			&rec.TechnicianID,
			&rec.Status,
			&rec.OpenedAt,
			&rec.ResolvedAt,
			&rec.Solution,
			&rec.CreatedBy,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
