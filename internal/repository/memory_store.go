package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sav-service/internal/domain"
)

// MemoryStore is an in-process Store. Each aggregate is serialized by its own lock and every
// transaction stages its writes in an overlay that is applied in one step on commit.
// Sequence numbers are consumed at allocation time and never handed out twice, even when
// the transaction that drew them rolls back.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memoryTables

	numTicket int64
	numDI     int64
	numBT     int64

	locksMu sync.Mutex
	locks   map[string]*aggregateLock
}

// aggregateLock is dropped from the table once no transaction holds or waits on it.
type aggregateLock struct {
	ch   chan struct{}
	refs int
}

type memoryTables struct {
	reclamations  map[string]domain.Reclamation
	interventions map[string]domain.Intervention
	assignments   map[string][]domain.Assignment
	workOrders    map[string]domain.WorkOrder
	staff         map[string]domain.StaffMember
	history       []domain.TicketHistory
}

func newMemoryTables() *memoryTables {
	return &memoryTables{
		reclamations:  make(map[string]domain.Reclamation),
		interventions: make(map[string]domain.Intervention),
		assignments:   make(map[string][]domain.Assignment),
		workOrders:    make(map[string]domain.WorkOrder),
		staff:         make(map[string]domain.StaffMember),
	}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  newMemoryTables(),
		locks: make(map[string]*aggregateLock),
	}
}

// Reader returns repositories whose writes are applied immediately.
func (s *MemoryStore) Reader() Repositories {
	return (&memoryTx{store: s}).repositories()
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.run(ctx, fn)
}

func (s *MemoryStore) WithinAggregate(ctx context.Context, reclamationID string, fn TxFunc) error {
	s.mu.RLock()
	_, exists := s.data.reclamations[reclamationID]
	s.mu.RUnlock()
	if !exists {
		return ErrNotFound
	}

	release, err := s.acquire(ctx, reclamationID)
	if err != nil {
		return err
	}
	defer release()
	return s.run(ctx, fn)
}

func (s *MemoryStore) run(ctx context.Context, fn TxFunc) error {
	tx := &memoryTx{store: s, staged: newMemoryTables()}
	if err := fn(ctx, tx.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx.staged)
	return nil
}

func (s *MemoryStore) acquire(ctx context.Context, id string) (func(), error) {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &aggregateLock{ch: make(chan struct{}, 1)}
		s.locks[id] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		return func() {
			<-lock.ch
			s.unref(id, lock)
		}, nil
	case <-ctx.Done():
		s.unref(id, lock)
		return nil, ctx.Err()
	}
}

func (s *MemoryStore) unref(id string, lock *aggregateLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *MemoryStore) commit(staged *memoryTables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range staged.reclamations {
		s.data.reclamations[id] = rec
	}
	for id, di := range staged.interventions {
		s.data.interventions[id] = di
	}
	for id, rows := range staged.assignments {
		s.data.assignments[id] = append(s.data.assignments[id], rows...)
	}
	for id, bt := range staged.workOrders {
		s.data.workOrders[id] = bt
	}
	for id, staff := range staged.staff {
		s.data.staff[id] = staff
	}
	s.data.history = append(s.data.history, staged.history...)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

// memoryTx reads through its staged overlay to the committed tables. A nil overlay means
// writes go straight to the committed tables.
type memoryTx struct {
	store  *MemoryStore
	staged *memoryTables
}

func (t *memoryTx) repositories() Repositories {
	return Repositories{
		Reclamations:  &memoryReclamations{tx: t},
		Interventions: &memoryInterventions{tx: t},
		Assignments:   &memoryAssignments{tx: t},
		WorkOrders:    &memoryWorkOrders{tx: t},
		Staff:         &memoryStaff{tx: t},
		History:       &memoryHistory{tx: t},
	}
}

func (t *memoryTx) write(apply func(tables *memoryTables)) {
	if t.staged != nil {
		apply(t.staged)
		return
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	apply(t.store.data)
}

func lookup[T any](t *memoryTx, pick func(*memoryTables) map[string]T, id string) (T, bool) {
	if t.staged != nil {
		if row, ok := pick(t.staged)[id]; ok {
			return row, true
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	row, ok := pick(t.store.data)[id]
	return row, ok
}

func collect[T any](t *memoryTx, pick func(*memoryTables) map[string]T, keep func(T) bool) []T {
	var staged map[string]T
	if t.staged != nil {
		staged = pick(t.staged)
	}
	var result []T
	t.store.mu.RLock()
	for id, row := range pick(t.store.data) {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if keep(row) {
			result = append(result, row)
		}
	}
	t.store.mu.RUnlock()
	for _, row := range staged {
		if keep(row) {
			result = append(result, row)
		}
	}
	return result
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}

type memoryReclamations struct{ tx *memoryTx }

func pickReclamations(m *memoryTables) map[string]domain.Reclamation { return m.reclamations }

func (r *memoryReclamations) Create(_ context.Context, rec *domain.Reclamation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.NumTicket = atomic.AddInt64(&r.tx.store.numTicket, 1)
	stamp(&rec.OpenedAt)
	stamp(&rec.UpdatedAt)
	row := *rec
	r.tx.write(func(m *memoryTables) { m.reclamations[row.ID] = row })
	return nil
}

func (r *memoryReclamations) Update(_ context.Context, rec *domain.Reclamation) error {
	current, ok := lookup(r.tx, pickReclamations, rec.ID)
	if !ok {
		return ErrNotFound
	}
	row := current
	row.TechnicianID = rec.TechnicianID
	row.Status = rec.Status
	row.ResolvedAt = rec.ResolvedAt
	row.Solution = rec.Solution
	row.Priority = rec.Priority
	row.UpdatedAt = time.Now().UTC()
	r.tx.write(func(m *memoryTables) { m.reclamations[row.ID] = row })
	return nil
}

func (r *memoryReclamations) GetByID(_ context.Context, id string) (*domain.Reclamation, error) {
	rec, ok := lookup(r.tx, pickReclamations, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *memoryReclamations) List(_ context.Context, filter ReclamationFilter) ([]domain.Reclamation, error) {
	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	rows := collect(r.tx, pickReclamations, func(rec domain.Reclamation) bool {
		if len(statuses) > 0 {
			if _, ok := statuses[rec.Status]; !ok {
				return false
			}
		}
		if filter.TechnicianID != nil && (rec.TechnicianID == nil || *rec.TechnicianID != *filter.TechnicianID) {
			return false
		}
		if filter.CustomerRef != nil && rec.CustomerRef != *filter.CustomerRef {
			return false
		}
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].NumTicket > rows[j].NumTicket })
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	return page(rows, limit, offset), nil
}

type memoryInterventions struct{ tx *memoryTx }

func pickInterventions(m *memoryTables) map[string]domain.Intervention { return m.interventions }

func (r *memoryInterventions) Create(_ context.Context, di *domain.Intervention) error {
	if di.ID == "" {
		di.ID = uuid.NewString()
	}
	di.NumDI = atomic.AddInt64(&r.tx.store.numDI, 1)
	stamp(&di.CreatedAt)
	stamp(&di.UpdatedAt)
	row := *di
	r.tx.write(func(m *memoryTables) { m.interventions[row.ID] = row })
	return nil
}

func (r *memoryInterventions) UpdateNotes(_ context.Context, id, notes string, at time.Time) error {
	row, ok := lookup(r.tx, pickInterventions, id)
	if !ok {
		return ErrNotFound
	}
	row.DiagnosticNotes = notes
	row.UpdatedAt = at
	r.tx.write(func(m *memoryTables) { m.interventions[row.ID] = row })
	return nil
}

func (r *memoryInterventions) GetByID(_ context.Context, id string) (*domain.Intervention, error) {
	di, ok := lookup(r.tx, pickInterventions, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &di, nil
}

func (r *memoryInterventions) ListByReclamation(_ context.Context, reclamationID string) ([]domain.Intervention, error) {
	rows := collect(r.tx, pickInterventions, func(di domain.Intervention) bool {
		return di.ReclamationID == reclamationID
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].NumDI < rows[j].NumDI })
	return rows, nil
}

type memoryAssignments struct{ tx *memoryTx }

func (r *memoryAssignments) Create(ctx context.Context, assignment *domain.Assignment) error {
	existing, err := r.ListByIntervention(ctx, assignment.InterventionID)
	if err != nil {
		return err
	}
	assignment.SequenceID = len(existing) + 1
	stamp(&assignment.AssignedAt)
	row := *assignment
	r.tx.write(func(m *memoryTables) {
		m.assignments[row.InterventionID] = append(m.assignments[row.InterventionID], row)
	})
	return nil
}

func (r *memoryAssignments) ListByIntervention(_ context.Context, interventionID string) ([]domain.Assignment, error) {
	r.tx.store.mu.RLock()
	rows := append([]domain.Assignment(nil), r.tx.store.data.assignments[interventionID]...)
	r.tx.store.mu.RUnlock()
	if r.tx.staged != nil {
		rows = append(rows, r.tx.staged.assignments[interventionID]...)
	}
	return rows, nil
}

type memoryWorkOrders struct{ tx *memoryTx }

func pickWorkOrders(m *memoryTables) map[string]domain.WorkOrder { return m.workOrders }

func (r *memoryWorkOrders) Create(_ context.Context, bt *domain.WorkOrder) error {
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}
	bt.NumBT = atomic.AddInt64(&r.tx.store.numBT, 1)
	stamp(&bt.CreatedAt)
	stamp(&bt.UpdatedAt)
	row := *bt
	r.tx.write(func(m *memoryTables) { m.workOrders[row.ID] = row })
	return nil
}

func (r *memoryWorkOrders) Update(_ context.Context, bt *domain.WorkOrder) error {
	current, ok := lookup(r.tx, pickWorkOrders, bt.ID)
	if !ok || current.State == domain.WorkOrderClosed {
		return ErrNotFound
	}
	row := *bt
	row.UpdatedAt = time.Now().UTC()
	r.tx.write(func(m *memoryTables) { m.workOrders[row.ID] = row })
	return nil
}

func (r *memoryWorkOrders) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	bt, ok := lookup(r.tx, pickWorkOrders, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &bt, nil
}

func (r *memoryWorkOrders) ListByIntervention(_ context.Context, interventionID string) ([]domain.WorkOrder, error) {
	rows := collect(r.tx, pickWorkOrders, func(bt domain.WorkOrder) bool {
		return bt.InterventionID == interventionID
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].NumBT < rows[j].NumBT })
	return rows, nil
}

type memoryStaff struct{ tx *memoryTx }

func pickStaff(m *memoryTables) map[string]domain.StaffMember { return m.staff }

func (r *memoryStaff) Create(ctx context.Context, staff *domain.StaffMember) error {
	if _, err := r.GetByEmail(ctx, staff.Email); err == nil {
		return ErrDuplicate
	}
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	stamp(&staff.CreatedAt)
	stamp(&staff.UpdatedAt)
	row := *staff
	r.tx.write(func(m *memoryTables) { m.staff[row.ID] = row })
	return nil
}

func (r *memoryStaff) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	staff, ok := lookup(r.tx, pickStaff, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &staff, nil
}

func (r *memoryStaff) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	rows := collect(r.tx, pickStaff, func(s domain.StaffMember) bool {
		return strings.EqualFold(s.Email, email)
	})
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (r *memoryStaff) List(_ context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	rows := collect(r.tx, pickStaff, func(s domain.StaffMember) bool {
		if filter.Role != nil && s.Role != *filter.Role {
			return false
		}
		if filter.Active != nil && s.Active != *filter.Active {
			return false
		}
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	return page(rows, limit, offset), nil
}

type memoryHistory struct{ tx *memoryTx }

func (r *memoryHistory) Create(_ context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	stamp(&history.CreatedAt)
	row := *history
	r.tx.write(func(m *memoryTables) { m.history = append(m.history, row) })
	return nil
}

func (r *memoryHistory) ListByReclamation(_ context.Context, reclamationID string) ([]domain.TicketHistory, error) {
	var result []domain.TicketHistory
	r.tx.store.mu.RLock()
	for _, h := range r.tx.store.data.history {
		if h.ReclamationID == reclamationID {
			result = append(result, h)
		}
	}
	r.tx.store.mu.RUnlock()
	if r.tx.staged != nil {
		for _, h := range r.tx.staged.history {
			if h.ReclamationID == reclamationID {
				result = append(result, h)
			}
		}
	}
	return result, nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
