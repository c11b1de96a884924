package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a Store over a pgx pool. Aggregate locks are row locks on reclamations.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Reclamations:  NewReclamationRepository(db),
		Interventions: NewInterventionRepository(db),
		Assignments:   NewAssignmentRepository(db),
		WorkOrders:    NewWorkOrderRepository(db),
		Staff:         NewStaffRepository(db),
		History:       NewTicketHistoryRepository(db),
	}
}

func (s *postgresStore) Reader() Repositories {
	return newRepositories(s.pool)
}

func (s *postgresStore) WithinTx(ctx context.Context, fn TxFunc) error {
	return s.run(ctx, "", fn)
}

func (s *postgresStore) WithinAggregate(ctx context.Context, reclamationID string, fn TxFunc) error {
	if !validID(reclamationID) {
		return ErrNotFound
	}
	return s.run(ctx, reclamationID, fn)
}

func (s *postgresStore) run(ctx context.Context, lockID string, fn TxFunc) (err error) {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if lockID != "" {
		var id string
		if err = tx.QueryRow(ctx, `SELECT id FROM reclamations WHERE id=$1 FOR UPDATE`, lockID).Scan(&id); err != nil {
			err = translate(err)
			return err
		}
	}

	if err = fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

func (s *postgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
