package execstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs synchronous-only
// deployments and tests; server deployments use the sqlite store.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]*Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]*Record)}
}

func (m *MemoryStore) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.ID]; ok {
		return ErrConflict
	}
	m.recs[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, owner string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.recs))
	for _, rec := range m.recs {
		if owner != "" && rec.Owner != owner {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) MarkScheduled(_ context.Context, id string) error {
	return m.transition(id, StateScheduled, func(*Record) {})
}

func (m *MemoryStore) MarkInProgress(_ context.Context, id string, now time.Time) error {
	return m.transition(id, StateInProgress, func(rec *Record) {
		t := now.UTC()
		rec.StartedAt = &t
	})
}

func (m *MemoryStore) MarkFinished(_ context.Context, id string, results []string, detailsRef string, now time.Time) error {
	return m.transition(id, StateFinished, func(rec *Record) {
		if rec.Summary != nil {
			rec.Summary.Results = append([]string(nil), results...)
		}
		rec.DetailsRef = detailsRef
		rec.Finalize(now)
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string, detailsRef string, now time.Time) error {
	return m.transition(id, StateFailed, func(rec *Record) {
		if rec.Summary != nil {
			rec.Summary.Error = errMsg
		}
		rec.DetailsRef = detailsRef
		rec.Finalize(now)
	})
}

func (m *MemoryStore) transition(id string, next State, apply func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return ErrNotFound
	}
	if !rec.State.Next(next) {
		return ErrBadTransition
	}
	rec.State = next
	apply(rec)
	return nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, id string, facet FacetKind, next Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return ErrNotFound
	}
	f := rec.Facet(facet)
	if !f.Availability.CanBecome(next) {
		return ErrBadTransition
	}
	f.Availability = next
	if next == TimedOut {
		switch facet {
		case FacetSummary:
			rec.Summary = nil
		case FacetDetails:
			rec.DetailsRef = ""
		}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *MemoryStore) DueTimeOutPending(_ context.Context, now time.Time) ([]*Record, error) {
	return m.scan(func(rec *Record) bool {
		for _, kind := range []FacetKind{FacetRecord, FacetSummary, FacetDetails} {
			f := rec.Facet(kind)
			if f.Availability == Available && f.Due(now) {
				return true
			}
		}
		return false
	})
}

func (m *MemoryStore) DuePurge(_ context.Context) ([]*Record, error) {
	return m.scan(func(rec *Record) bool {
		for _, kind := range []FacetKind{FacetRecord, FacetSummary, FacetDetails} {
			if rec.Facet(kind).Availability == TimeOutPending {
				return true
			}
		}
		return false
	})
}

func (m *MemoryStore) scan(match func(*Record) bool) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, rec := range m.recs {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
