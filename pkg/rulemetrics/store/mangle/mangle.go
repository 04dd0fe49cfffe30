// Package mangle evaluates query patterns as Datalog programs with the Google
// Mangle engine. The loaded graph lives in one base fact store of kg_triple/3
// and kg_label/2 facts. Each count compiles the pattern into clauses over
// those predicates and evaluates them on a teeing store, so derived facts go
// to a per-count layer and the base is never copied.
package mangle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

const (
	triplePred    = "kg_triple"
	labelPred     = "kg_label"
	matchPred     = "pattern_match"
	labelledPred  = "pattern_labelled"
	absentPrefix  = "pattern_absent_"
	schemaDecls   = "Decl kg_triple(Subject, Predicate, Object).\nDecl kg_label(Entity, Label).\n"
	entityVarName = "E"
)

// Store implements store.Store and store.Loader on a Mangle fact store.
// Writers take the lock exclusively; counts hold it shared while they
// evaluate against base.
type Store struct {
	mu     sync.RWMutex
	base   factstore.SimpleInMemoryStore
	facts  int64
	labels map[string]query.Label
}

// New creates an empty store.
func New() *Store {
	return &Store{
		base:   factstore.NewSimpleInMemoryStore(),
		labels: make(map[string]query.Label),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AddFact inserts a triple; duplicates are ignored.
func (s *Store) AddFact(ctx context.Context, f store.Fact) error {
	if f.Subject == "" || f.Predicate == "" || f.Object == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base.Add(ast.NewAtom(triplePred, ast.String(f.Subject), ast.String(f.Predicate), ast.String(f.Object))) {
		s.facts++
	}
	return nil
}

// SetLabel records the entity's label, replacing any previous one.
func (s *Store) SetLabel(ctx context.Context, entity string, l query.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.labels[entity]; ok {
		s.base.Remove(labelAtom(entity, old))
	}
	s.labels[entity] = l
	s.base.Add(labelAtom(entity, l))
	return nil
}

// Label returns the entity's label.
func (s *Store) Label(ctx context.Context, entity string) (query.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.labels[entity]; ok {
		return l, nil
	}
	return query.LabelUnevaluated, nil
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

// CountDistinct implements store.Store.
func (s *Store) CountDistinct(ctx context.Context, p query.Pattern) (int64, error) {
	src, err := Program(p)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	unit, err := parse.Unit(strings.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("parse error: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return 0, fmt.Errorf("analysis error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	layer := factstore.NewTeeingStore(s.base)
	if _, err := mengine.EvalProgramWithStats(programInfo, layer); err != nil {
		return 0, fmt.Errorf("evaluation error: %w", err)
	}

	var n int64
	err = layer.Out.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: matchPred, Arity: 1}), func(ast.Atom) error {
		n++
		return nil
	})
	return n, err
}

func labelAtom(entity string, l query.Label) ast.Atom {
	return ast.NewAtom(labelPred, ast.String(entity), ast.String(string(l)))
}

// Program renders p as Mangle source. The entity variable becomes E and the
// other variables V1, V2, ... in order of first appearance. Each Absent atom
// gets a helper predicate projecting the variables it shares with Where, so
// that every negated atom is fully bound. A helper sharing no variables takes
// a constant argument.
func Program(p query.Pattern) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	names := map[string]string{p.Entity.Value: entityVarName}
	name := func(v string) string {
		if n, ok := names[v]; ok {
			return n
		}
		n := "V" + strconv.Itoa(len(names))
		names[v] = n
		return n
	}

	var premises []string
	for _, a := range p.Where {
		premises = append(premises, tripleAtom(a, name))
	}
	bound := make(map[string]string, len(names))
	for v, n := range names {
		bound[v] = n
	}

	var b strings.Builder
	b.WriteString(schemaDecls)

	for k, a := range p.Absent {
		helper := absentPrefix + strconv.Itoa(k)
		local := make(map[string]string)
		term := func(v string) string {
			if n, ok := bound[v]; ok {
				return n
			}
			if n, ok := local[v]; ok {
				return n
			}
			n := "L" + strconv.Itoa(len(local))
			local[v] = n
			return n
		}

		var shared []string
		seen := make(map[string]bool)
		for _, v := range a.Variables() {
			if n, ok := bound[v]; ok && !seen[n] {
				shared = append(shared, n)
				seen[n] = true
			}
		}
		if len(shared) == 0 {
			shared = []string{`"any"`}
		}
		head := helper + "(" + strings.Join(shared, ", ") + ")"
		fmt.Fprintf(&b, "%s :- %s.\n", head, tripleAtom(a, term))
		premises = append(premises, "!"+head)
	}

	switch p.Label {
	case "":
		fmt.Fprintf(&b, "%s(%s) :- %s.\n", matchPred, entityVarName, strings.Join(premises, ", "))
	case query.LabelUnevaluated:
		fmt.Fprintf(&b, "%s(%s) :- %s(%s, _).\n", labelledPred, entityVarName, labelPred, entityVarName)
		fmt.Fprintf(&b, "%s(%s) :- %s, %s(%s, %s).\n", matchPred, entityVarName, strings.Join(premises, ", "), labelPred, entityVarName, strconv.Quote(string(p.Label)))
		fmt.Fprintf(&b, "%s(%s) :- %s, !%s(%s).\n", matchPred, entityVarName, strings.Join(premises, ", "), labelledPred, entityVarName)
	default:
		fmt.Fprintf(&b, "%s(%s) :- %s, %s(%s, %s).\n", matchPred, entityVarName, strings.Join(premises, ", "), labelPred, entityVarName, strconv.Quote(string(p.Label)))
	}
	return b.String(), nil
}

func tripleAtom(a rule.Atom, name func(string) string) string {
	args := make([]string, 0, 3)
	for _, t := range a.Terms() {
		if t.IsVariable() {
			args = append(args, name(t.Value))
		} else {
			args = append(args, strconv.Quote(t.Key()))
		}
	}
	return triplePred + "(" + strings.Join(args, ", ") + ")"
}
