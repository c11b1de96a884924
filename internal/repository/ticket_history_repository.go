package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/sav-service/internal/domain"
)

// TicketHistoryRepository stores workflow audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByReclamation(ctx context.Context, reclamationID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO workflow_history (id, reclamation_id, entity_type, entity_id, action, actor_id, actor_role, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		history.ID,
		history.ReclamationID,
		history.EntityType,
		history.EntityID,
		history.Action,
		history.ActorID,
		history.ActorRole,
		history.OldValue,
		history.NewValue,
	).Scan(&history.CreatedAt)
	return translate(err)
}

func (r *ticketHistoryRepository) ListByReclamation(ctx context.Context, reclamationID string) ([]domain.TicketHistory, error) {
	if !validID(reclamationID) {
		return nil, nil
	}
	const query = `
        SELECT id, reclamation_id, entity_type, entity_id, action, actor_id, actor_role, old_value, new_value, created_at
        FROM workflow_history WHERE reclamation_id=$1 ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query, reclamationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.ReclamationID,
			&history.EntityType,
			&history.EntityID,
			&history.Action,
			&history.ActorID,
			&history.ActorRole,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, translate(err)
		}
		result = append(result, history)
	}
	return result, translate(rows.Err())
}
