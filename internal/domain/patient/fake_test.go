package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository with the same owner scoping, search
// and ordering as the PostgreSQL one.
type memRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*Patient
	lists []ListQuery
	now   func() time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows: make(map[uuid.UUID]*Patient),
		now:  func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (m *memRepo) Create(_ context.Context, ownerID uuid.UUID, in Input) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Patient{ID: uuid.New(), OwnerID: ownerID, Input: in, CreatedAt: m.now(), UpdatedAt: m.now()}
	m.rows[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetByID(_ context.Context, ownerID, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, ownerID, id uuid.UUID, in Input) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	p.Input = in
	p.UpdatedAt = m.now().Add(time.Minute)
	cp := *p
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) List(_ context.Context, ownerID uuid.UUID, q ListQuery) ([]Row, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, q)

	var matched []*Patient
	for _, p := range m.rows {
		if p.OwnerID != ownerID {
			continue
		}
		if q.Search != "" && !strings.Contains(deref(p.FirstName)+" "+deref(p.LastName), q.Search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if deref(a.LastName) != deref(b.LastName) {
			return deref(a.LastName) < deref(b.LastName)
		}
		if deref(a.FirstName) != deref(b.FirstName) {
			return deref(a.FirstName) < deref(b.FirstName)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matched)
	if q.Limit > 0 {
		end := q.Offset + q.Limit
		if q.Offset > len(matched) {
			matched = nil
		} else {
			if end > len(matched) {
				end = len(matched)
			}
			matched = matched[q.Offset:end]
		}
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = Columns
	}
	out := make([]Row, 0, len(matched))
	for _, p := range matched {
		out = append(out, NewRow(cols, rowValues(p, cols)))
	}
	return out, total, nil
}

func rowValues(p *Patient, cols []string) []interface{} {
	byName := map[string]interface{}{
		"id":         p.ID.String(),
		"owner_id":   p.OwnerID.String(),
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
	for i, v := range p.Input.values() {
		byName[WritableFields[i]] = v
	}
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		v := byName[c]
		if s, ok := v.(*string); ok {
			if s == nil {
				v = nil
			} else {
				v = *s
			}
		}
		vals[i] = v
	}
	return vals
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
