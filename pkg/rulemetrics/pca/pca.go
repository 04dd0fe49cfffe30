// Package pca computes Partial Completeness Assumption confidence for parsed
// rules, per entity partition, from distinct-entity counts in a store.
package pca

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/compile"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

// DefaultCacheSize is the number of pattern counts kept by an evaluator.
const DefaultCacheSize = 4096

// Counts are the distinct-entity counts behind one partition's score.
type Counts struct {
	Support         int64
	Body            int64 // entities satisfying the completeness pattern
	Counterexamples int64
}

// PartitionResult is the outcome for one partition.
type PartitionResult struct {
	Partition  query.Label
	Counts     Counts
	Confidence float64
}

// Scores pairs a valid and an invalid value.
type Scores struct {
	Valid   float64
	Invalid float64
}

// Result holds both partitions of one rule.
type Result struct {
	Valid   PartitionResult
	Invalid PartitionResult
}

// Raw returns the PCA confidence of each partition.
func (r Result) Raw() Scores {
	return Scores{Valid: r.Valid.Confidence, Invalid: r.Invalid.Confidence}
}

// Normalized returns each partition's share of the total support.
func (r Result) Normalized() Scores {
	v, i := Normalize(r.Valid.Counts.Support, r.Invalid.Counts.Support)
	return Scores{Valid: v, Invalid: i}
}

// Confidence is support/body, or 0 when body is 0.
func Confidence(support, body int64) float64 {
	if body <= 0 {
		return 0
	}
	return float64(support) / float64(body)
}

// Normalize splits total support between the partitions. Both shares are 0
// when neither partition has support.
func Normalize(supportValid, supportInvalid int64) (float64, float64) {
	total := supportValid + supportInvalid
	if total <= 0 {
		return 0, 0
	}
	return float64(supportValid) / float64(total), float64(supportInvalid) / float64(total)
}

// Evaluator runs compiled patterns against a store snapshot. Counts are cached
// by pattern text, so the store must not change during the evaluator's life.
type Evaluator struct {
	store    store.Store
	compiler *compile.Compiler
	cache    *lru.Cache[string, int64]
}

// NewEvaluator creates an evaluator. cacheSize <= 0 selects DefaultCacheSize.
func NewEvaluator(s store.Store, c *compile.Compiler, cacheSize int) (*Evaluator, error) {
	if s == nil || c == nil {
		return nil, fmt.Errorf("evaluator needs a store and a compiler: %w", internalerr.ErrInvalidConfig)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, int64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("count cache: %w", err)
	}
	return &Evaluator{store: s, compiler: c, cache: cache}, nil
}

// Evaluate scores r under both partitions.
func (e *Evaluator) Evaluate(ctx context.Context, r rule.Rule) (Result, error) {
	valid, err := e.EvaluatePartition(ctx, r, query.LabelValid)
	if err != nil {
		return Result{}, err
	}
	invalid, err := e.EvaluatePartition(ctx, r, query.LabelInvalid)
	if err != nil {
		return Result{}, err
	}
	return Result{Valid: valid, Invalid: invalid}, nil
}

// EvaluatePartition scores r under a single partition.
func (e *Evaluator) EvaluatePartition(ctx context.Context, r rule.Rule, partition query.Label) (PartitionResult, error) {
	compiled, err := e.compiler.Compile(r, partition)
	if err != nil {
		return PartitionResult{}, err
	}

	var c Counts
	if c.Support, err = e.count(ctx, compile.RoleSupport, compiled.Support); err != nil {
		return PartitionResult{}, err
	}
	if c.Body, err = e.count(ctx, compile.RoleCompleteness, compiled.Completeness); err != nil {
		return PartitionResult{}, err
	}
	if c.Counterexamples, err = e.count(ctx, compile.RoleCounterexamples, compiled.Counterexamples); err != nil {
		return PartitionResult{}, err
	}

	return PartitionResult{
		Partition:  partition,
		Counts:     c,
		Confidence: Confidence(c.Support, c.Body),
	}, nil
}

func (e *Evaluator) count(ctx context.Context, role string, p query.Pattern) (int64, error) {
	key := p.String()
	if n, ok := e.cache.Get(key); ok {
		return n, nil
	}
	n, err := e.store.CountDistinct(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &store.ExecutionError{Role: role, Pattern: key, Err: err}
	}
	e.cache.Add(key, n)
	return n, nil
}

// CacheLen reports how many counts are cached.
func (e *Evaluator) CacheLen() int { return e.cache.Len() }
