package store

import (
	"context"
	"fmt"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
)

// Store is the read side of an entity graph: facts plus one validity label
// per entity. Implementations must not mutate facts while counting.
type Store interface {
	Close() error

	// CountDistinct returns the number of distinct bindings of p.Entity that
	// satisfy p. It is deterministic for a fixed snapshot.
	CountDistinct(ctx context.Context, p query.Pattern) (int64, error)

	// Label returns the entity's label; unlabelled entities are unevaluated.
	Label(ctx context.Context, entity string) (query.Label, error)

	// Stats summarises the loaded graph.
	Stats(ctx context.Context) (Stats, error)
}

// Loader is the write side used by ingestion before a run.
type Loader interface {
	AddFact(ctx context.Context, f Fact) error
	SetLabel(ctx context.Context, entity string, l query.Label) error
}

// Fact is one triple. Terms use rule.Term key form: IRIs bare, literals quoted.
type Fact struct {
	Subject   string
	Predicate string
	Object    string
}

// Stats holds the fact count and the number of entities per label.
type Stats struct {
	Facts  int64
	Labels map[query.Label]int64
}

// ExecutionError reports a count query that failed inside the store.
type ExecutionError struct {
	Role    string // which pattern failed: support, completeness, counterexamples
	Pattern string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s query: %v", e.Role, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{internalerr.ErrStoreExecution, e.Err}
}
