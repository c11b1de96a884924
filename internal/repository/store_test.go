package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sav-service/internal/domain"
)

func TestTranslate(t *testing.T) {
	reset := errors.New("connection reset")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrDuplicate},
		{"malformed uuid", &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}, ErrNotFound},
		{"missing parent", &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}, ErrNotFound},
		{"lock timeout", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}, ErrLockTimeout},
		{"other server error", &pgconn.PgError{Code: "53300"}, nil},
		{"transport error", reset, reset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err)
			require.Error(t, got)
			if tc.want == nil {
				assert.Same(t, tc.err, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}

	assert.NoError(t, translate(nil))
	assert.Contains(t, translate(&pgconn.PgError{Code: "55P03", Message: "lock timeout"}).Error(), "lock timeout")
}

// unreachableDB fails the test on any round trip.
type unreachableDB struct {
	t *testing.T
}

var errUnreachable = errors.New("database must not be reached")

func (d unreachableDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.t.Errorf("unexpected exec: %s", sql)
	return pgconn.CommandTag{}, errUnreachable
}

func (d unreachableDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	d.t.Errorf("unexpected query: %s", sql)
	return nil, errUnreachable
}

func (d unreachableDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	d.t.Errorf("unexpected query: %s", sql)
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return errUnreachable }

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	repos := newRepositories(unreachableDB{t: t})

	for _, id := range []string{"abc", "5", "", "123e4567-e89b-12d3-a456"} {
		t.Run(fmt.Sprintf("id %q", id), func(t *testing.T) {
			_, err := repos.Reclamations.GetByID(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repos.Interventions.GetByID(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repos.WorkOrders.GetByID(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repos.Staff.GetByID(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, repos.Reclamations.Update(ctx, &domain.Reclamation{ID: id}), ErrNotFound)
			assert.ErrorIs(t, repos.WorkOrders.Update(ctx, &domain.WorkOrder{ID: id}), ErrNotFound)
			assert.ErrorIs(t, repos.Interventions.UpdateNotes(ctx, id, "notes", time.Now()), ErrNotFound)

			dis, err := repos.Interventions.ListByReclamation(ctx, id)
			assert.NoError(t, err)
			assert.Empty(t, dis)
			assignments, err := repos.Assignments.ListByIntervention(ctx, id)
			assert.NoError(t, err)
			assert.Empty(t, assignments)
			orders, err := repos.WorkOrders.ListByIntervention(ctx, id)
			assert.NoError(t, err)
			assert.Empty(t, orders)
			history, err := repos.History.ListByReclamation(ctx, id)
			assert.NoError(t, err)
			assert.Empty(t, history)
			tickets, err := repos.Reclamations.List(ctx, ReclamationFilter{TechnicianID: &id})
			assert.NoError(t, err)
			assert.Empty(t, tickets)
		})
	}
}

func TestPostgresStoreRejectsMalformedAggregate(t *testing.T) {
	store := NewPostgresStore(nil)
	called := false
	err := store.WithinAggregate(context.Background(), "abc", func(context.Context, Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestRepositoryErrorsAreTranslated(t *testing.T) {
	ctx := context.Background()
	repos := newRepositories(failingDB{err: &pgconn.PgError{Code: "55P03", Message: "lock timeout"}})
	id := "123e4567-e89b-12d3-a456-426614174000"

	_, err := repos.Reclamations.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, repos.Reclamations.Update(ctx, &domain.Reclamation{ID: id}), ErrLockTimeout)
	assert.ErrorIs(t, repos.WorkOrders.Update(ctx, &domain.WorkOrder{ID: id}), ErrLockTimeout)
	assert.ErrorIs(t, repos.Interventions.UpdateNotes(ctx, id, "n", time.Now()), ErrLockTimeout)

	repos = newRepositories(failingDB{err: &pgconn.PgError{Code: "23503"}})
	assert.ErrorIs(t, repos.Interventions.Create(ctx, &domain.Intervention{ReclamationID: id}), ErrNotFound)
	assert.ErrorIs(t, repos.History.Create(ctx, &domain.TicketHistory{ReclamationID: id}), ErrNotFound)

	repos = newRepositories(failingDB{err: &pgconn.PgError{Code: "23505"}})
	assert.ErrorIs(t, repos.Staff.Create(ctx, &domain.StaffMember{Email: "dup@sav.test"}), ErrDuplicate)
	assert.ErrorIs(t, repos.Assignments.Create(ctx, &domain.Assignment{InterventionID: id}), ErrDuplicate)
	assert.ErrorIs(t, repos.WorkOrders.Create(ctx, &domain.WorkOrder{InterventionID: id}), ErrDuplicate)
	assert.ErrorIs(t, repos.Reclamations.Create(ctx, &domain.Reclamation{}), ErrDuplicate)
}

// failingDB answers every statement with err.
type failingDB struct {
	err error
}

func (f failingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.err
}

func (f failingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func (f failingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return failingRow{err: f.err}
}

type failingRow struct {
	err error
}

func (r failingRow) Scan(...any) error { return r.err }
