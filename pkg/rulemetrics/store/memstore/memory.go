package memstore

import (
	"context"
	"sync"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

// Store is an in-memory implementation of store.Store and store.Loader.
type Store struct {
	mu     sync.RWMutex
	spo    map[string]map[string]map[string]struct{}
	labels map[string]query.Label
	facts  int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		spo:    make(map[string]map[string]map[string]struct{}),
		labels: make(map[string]query.Label),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AddFact inserts a triple; duplicates are ignored.
func (s *Store) AddFact(ctx context.Context, f store.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Subject == "" || f.Predicate == "" || f.Object == "" {
		return nil
	}

	preds, ok := s.spo[f.Subject]
	if !ok {
		preds = make(map[string]map[string]struct{})
		s.spo[f.Subject] = preds
	}
	objs, ok := preds[f.Predicate]
	if !ok {
		objs = make(map[string]struct{})
		preds[f.Predicate] = objs
	}
	if _, dup := objs[f.Object]; !dup {
		objs[f.Object] = struct{}{}
		s.facts++
	}
	return nil
}

// SetLabel records the entity's label, replacing any previous one.
func (s *Store) SetLabel(ctx context.Context, entity string, l query.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[entity] = l
	return nil
}

// Label returns the entity's label.
func (s *Store) Label(ctx context.Context, entity string) (query.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labelOf(entity), nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := store.Stats{Facts: s.facts, Labels: make(map[query.Label]int64)}
	for _, l := range s.labels {
		st.Labels[l]++
	}
	return st, nil
}

// CountDistinct enumerates solutions of p.Where by backtracking and keeps the
// distinct entity values whose label matches and for which no Absent atom holds.
func (s *Store) CountDistinct(ctx context.Context, p query.Pattern) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entity := p.Entity.Value
	seen := make(map[string]struct{})
	rejected := make(map[string]struct{})
	var ctxErr error

	s.solve(p.Where, binding{}, func(b binding) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		e := b[entity]
		if _, ok := seen[e]; ok {
			return true
		}
		if _, ok := rejected[e]; ok {
			return true
		}
		if p.Label != "" && s.labelOf(e) != p.Label {
			rejected[e] = struct{}{}
			return true
		}
		for _, a := range p.Absent {
			if s.exists(a, b) {
				return true
			}
		}
		seen[e] = struct{}{}
		return true
	})
	if ctxErr != nil {
		return 0, ctxErr
	}
	return int64(len(seen)), nil
}

func (s *Store) labelOf(entity string) query.Label {
	if l, ok := s.labels[entity]; ok {
		return l
	}
	return query.LabelUnevaluated
}

// binding maps variable names to store keys.
type binding map[string]string

func (b binding) with(name, value string) binding {
	nb := make(binding, len(b)+1)
	for k, v := range b {
		nb[k] = v
	}
	nb[name] = value
	return nb
}

// unify extends b so that t equals value, or reports a mismatch.
func unify(t rule.Term, value string, b binding) (binding, bool) {
	if !t.IsVariable() {
		return b, t.Key() == value
	}
	if bound, ok := b[t.Value]; ok {
		return b, bound == value
	}
	return b.with(t.Value, value), true
}

// lookup returns the value t is fixed to under b, if any.
func lookup(t rule.Term, b binding) (string, bool) {
	if !t.IsVariable() {
		return t.Key(), true
	}
	v, ok := b[t.Value]
	return v, ok
}

// solve calls emit for every binding satisfying all atoms. emit returns
// false to stop the search; solve then returns false as well.
func (s *Store) solve(atoms []rule.Atom, b binding, emit func(binding) bool) bool {
	if len(atoms) == 0 {
		return emit(b)
	}
	return s.match(atoms[0], b, func(nb binding) bool {
		return s.solve(atoms[1:], nb, emit)
	})
}

func (s *Store) match(a rule.Atom, b binding, fn func(binding) bool) bool {
	var subjects []string
	if v, ok := lookup(a.Subject, b); ok {
		if _, exists := s.spo[v]; !exists {
			return true
		}
		subjects = []string{v}
	} else {
		subjects = make([]string, 0, len(s.spo))
		for subj := range s.spo {
			subjects = append(subjects, subj)
		}
	}

	for _, subj := range subjects {
		b1, ok := unify(a.Subject, subj, b)
		if !ok {
			continue
		}
		for pred, objs := range s.spo[subj] {
			b2, ok := unify(a.Predicate, pred, b1)
			if !ok {
				continue
			}
			if v, fixed := lookup(a.Object, b2); fixed {
				if _, ok := objs[v]; ok {
					if !fn(b2) {
						return false
					}
				}
				continue
			}
			for obj := range objs {
				b3, ok := unify(a.Object, obj, b2)
				if !ok {
					continue
				}
				if !fn(b3) {
					return false
				}
			}
		}
	}
	return true
}

func (s *Store) exists(a rule.Atom, b binding) bool {
	found := false
	s.match(a, b, func(binding) bool {
		found = true
		return false
	})
	return found
}
