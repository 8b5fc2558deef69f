package entity

import (
	"context"
	"errors"
	"sync"

	"github.com/tracelab/opexec/pkg/operation"
)

// world is the complete entity state, keyed by identifier.
type world struct {
	spaces       map[string]*Space
	projects     map[string]*Project
	experiments  map[string]*Experiment
	samples      map[string]*Sample
	datasets     map[string]*DataSet
	materials    map[string]*Material
	vocabularies map[string]*Vocabulary
	tags         map[string]*Tag
}

func newWorld() *world {
	return &world{
		spaces:       make(map[string]*Space),
		projects:     make(map[string]*Project),
		experiments:  make(map[string]*Experiment),
		samples:      make(map[string]*Sample),
		datasets:     make(map[string]*DataSet),
		materials:    make(map[string]*Material),
		vocabularies: make(map[string]*Vocabulary),
		tags:         make(map[string]*Tag),
	}
}

func (w *world) clone() *world {
	out := newWorld()
	for k, v := range w.spaces {
		s := *v
		out.spaces[k] = &s
	}
	for k, v := range w.projects {
		p := *v
		out.projects[k] = &p
	}
	for k, v := range w.experiments {
		e := *v
		e.Properties = cloneProps(v.Properties)
		out.experiments[k] = &e
	}
	for k, v := range w.samples {
		s := *v
		s.Properties = cloneProps(v.Properties)
		s.Parents = append([]string(nil), v.Parents...)
		s.Tags = append([]string(nil), v.Tags...)
		out.samples[k] = &s
	}
	for k, v := range w.datasets {
		d := *v
		d.Properties = cloneProps(v.Properties)
		out.datasets[k] = &d
	}
	for k, v := range w.materials {
		m := *v
		m.Properties = cloneProps(v.Properties)
		out.materials[k] = &m
	}
	for k, v := range w.vocabularies {
		vo := *v
		vo.Terms = append([]VocabularyTerm(nil), v.Terms...)
		out.vocabularies[k] = &vo
	}
	for k, v := range w.tags {
		t := *v
		out.tags[k] = &t
	}
	return out
}

func cloneProps(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store is the in-memory entity store. Transactions work on a deep snapshot
// of the world and swap it in atomically on commit, so a failed batch leaves
// no trace.
type Store struct {
	mu sync.Mutex
	w  *world
}

var _ operation.UnitOfWorkFactory = (*Store)(nil)

func NewStore() *Store {
	return &Store{w: newWorld()}
}

// Begin opens a transaction over a snapshot of the current world.
func (s *Store) Begin(_ context.Context) (operation.UnitOfWork, error) {
	return s.BeginTxn(), nil
}

// BeginTxn is Begin without the interface indirection, for callers that hold
// the concrete store.
func (s *Store) BeginTxn() *Txn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Txn{store: s, w: s.w.clone()}
}

// view runs fn against the committed world under the store lock.
func (s *Store) view(fn func(*world)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w)
}

// Space returns the committed space with the given code.
func (s *Store) Space(code string) (Space, bool) {
	var out Space
	var ok bool
	s.view(func(w *world) {
		if sp, found := w.spaces[code]; found {
			out, ok = *sp, true
		}
	})
	return out, ok
}

// Sample returns the committed sample with the given identifier.
func (s *Store) Sample(identifier string) (Sample, bool) {
	var out Sample
	var ok bool
	s.view(func(w *world) {
		if sm, found := w.samples[identifier]; found {
			out, ok = *sm, true
			out.Parents = append([]string(nil), sm.Parents...)
		}
	})
	return out, ok
}

// Project returns the committed project with the given identifier.
func (s *Store) Project(identifier string) (Project, bool) {
	var out Project
	var ok bool
	s.view(func(w *world) {
		if p, found := w.projects[identifier]; found {
			out, ok = *p, true
		}
	})
	return out, ok
}

// Counts reports the committed entity counts, mostly for tests.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int)
	s.view(func(w *world) {
		out["spaces"] = len(w.spaces)
		out["projects"] = len(w.projects)
		out["experiments"] = len(w.experiments)
		out["samples"] = len(w.samples)
		out["datasets"] = len(w.datasets)
		out["materials"] = len(w.materials)
		out["vocabularies"] = len(w.vocabularies)
		out["tags"] = len(w.tags)
	})
	return out
}

// Txn is one open transaction. It satisfies the engine's unit-of-work
// contract including the rollback-only marker used by synchronous execution.
type Txn struct {
	store        *Store
	w            *world
	rollbackOnly bool
	done         bool
}

var (
	_ operation.UnitOfWork         = (*Txn)(nil)
	_ operation.RollbackOnlyMarker = (*Txn)(nil)
)

// ErrRollbackOnly is returned by Commit after the transaction was poisoned.
var ErrRollbackOnly = errors.New("transaction is rollback-only")

func (t *Txn) Commit() error {
	if t.done {
		return errors.New("transaction already closed")
	}
	if t.rollbackOnly {
		return ErrRollbackOnly
	}
	t.done = true
	t.store.mu.Lock()
	t.store.w = t.w
	t.store.mu.Unlock()
	return nil
}

func (t *Txn) Rollback() error {
	t.done = true
	return nil
}

func (t *Txn) MarkRollbackOnly() {
	t.rollbackOnly = true
}
