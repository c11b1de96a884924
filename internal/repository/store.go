package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned by every repository when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrLockTimeout is returned when an aggregate lock could not be taken in time.
	ErrLockTimeout = errors.New("aggregate lock timeout")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the per-entity repositories bound to one connection or transaction.
type Repositories struct {
	Reclamations  ReclamationRepository
	Interventions InterventionRepository
	Assignments   AssignmentRepository
	WorkOrders    WorkOrderRepository
	Staff         StaffRepository
	History       TicketHistoryRepository
}

// TxFunc is the unit of work executed inside a store transaction.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is the transactional ticket store.
type Store interface {
	// Reader returns repositories that run outside any explicit transaction.
	Reader() Repositories
	// WithinTx runs fn in a single transaction without an aggregate lock.
	WithinTx(ctx context.Context, fn TxFunc) error
	// WithinAggregate runs fn in a single transaction holding the exclusive lock on the
	// reclamation aggregate. It returns ErrNotFound when the reclamation does not exist.
	// Nothing is committed when fn returns an error or ctx is done.
	WithinAggregate(ctx context.Context, reclamationID string, fn TxFunc) error
	Ping(ctx context.Context) error
	Close()
}

// validID reports whether id can address a UUID key. Rows behind any other id cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "22P02", "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		case "55P03":
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}
