// Package rulemetrics scores batches of mined rules with partition-aware PCA
// confidence over a labelled entity graph.
package rulemetrics

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/compile"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/pca"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

// Options configures an Aggregator.
type Options struct {
	Compiler  *compile.Compiler
	Evaluator *pca.Evaluator
	Logger    *zap.Logger

	// Registerer receives the aggregator's metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer

	// RuleTimeout bounds each rule's evaluation; zero means no bound.
	RuleTimeout time.Duration
}

// Aggregator runs rules one after another and collects a record per rule.
type Aggregator struct {
	compiler    *compile.Compiler
	evaluator   *pca.Evaluator
	logger      *zap.Logger
	ruleTimeout time.Duration
	entropy     *ulid.MonotonicEntropy
	metrics     *metrics
}

// Failure identifies a rule that could not be scored and why.
type Failure struct {
	Rule   string // "body => head"
	Reason string // failure kind, see Kind
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("rule %s: %v", f.Rule, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Record is the output for one input rule.
type Record struct {
	Index      int
	Descriptor rule.Descriptor
	Result     pca.Result
	Raw        pca.Scores
	Normalized pca.Scores
	Failure    *Failure
	Duration   time.Duration
}

// OK reports whether the rule was scored.
func (r Record) OK() bool { return r.Failure == nil }

// Stat is the mean and standard deviation of one score column.
type Stat struct {
	Mean   float64
	StdDev float64
}

// Summary describes a batch.
type Summary struct {
	Rules             int
	Evaluated         int
	Failed            int
	FailuresByKind    map[string]int
	RawValid          Stat
	RawInvalid        Stat
	NormalizedValid   Stat
	NormalizedInvalid Stat
}

// Batch is the result of one Run.
type Batch struct {
	ID      string
	Records []Record
	Summary Summary
}

type metrics struct {
	rules    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		rules: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pca_rules_total",
			Help: "Rules processed by result",
		}, []string{"result"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pca_rule_failures_total",
			Help: "Rule failures by kind",
		}, []string{"kind"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pca_rule_duration_seconds",
			Help:    "Per-rule evaluation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
	}
}

// New creates an aggregator.
func New(opts Options) (*Aggregator, error) {
	if opts.Compiler == nil || opts.Evaluator == nil {
		return nil, fmt.Errorf("aggregator needs a compiler and an evaluator: %w", internalerr.ErrInvalidConfig)
	}
	if opts.RuleTimeout < 0 {
		return nil, fmt.Errorf("negative rule timeout %s: %w", opts.RuleTimeout, internalerr.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		compiler:    opts.Compiler,
		evaluator:   opts.Evaluator,
		logger:      logger,
		ruleTimeout: opts.RuleTimeout,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		metrics:     newMetrics(opts.Registerer),
	}, nil
}

// Run scores rules in input order, producing exactly one record per rule.
// A failing rule is recorded and the batch continues. If ctx ends, Run
// returns the records produced so far together with ctx's error.
func (a *Aggregator) Run(ctx context.Context, rules []rule.Descriptor) (Batch, error) {
	batch := Batch{
		ID:      ulid.MustNew(ulid.Now(), a.entropy).String(),
		Records: make([]Record, 0, len(rules)),
	}
	log := a.logger.With(zap.String("batch", batch.ID))
	log.Info("batch started", zap.Int("rules", len(rules)))

	for i, d := range rules {
		if err := ctx.Err(); err != nil {
			batch.Summary = summarize(batch.Records)
			log.Warn("batch cancelled", zap.Int("completed", len(batch.Records)), zap.Error(err))
			return batch, err
		}

		rec, err := a.evaluate(ctx, i, d)
		if err != nil {
			batch.Summary = summarize(batch.Records)
			log.Warn("batch cancelled", zap.Int("completed", len(batch.Records)), zap.Error(err))
			return batch, err
		}
		batch.Records = append(batch.Records, rec)

		if rec.Failure != nil {
			log.Warn("rule failed",
				zap.Int("rule", i),
				zap.String("body", d.Body),
				zap.String("head", d.Head),
				zap.String("kind", rec.Failure.Reason),
				zap.Error(rec.Failure.Err))
			continue
		}
		log.Debug("rule scored",
			zap.Int("rule", i),
			zap.Float64("pca_valid", rec.Raw.Valid),
			zap.Float64("pca_invalid", rec.Raw.Invalid),
			zap.Duration("took", rec.Duration))
	}

	batch.Summary = summarize(batch.Records)
	log.Info("batch finished",
		zap.Int("evaluated", batch.Summary.Evaluated),
		zap.Int("failed", batch.Summary.Failed))
	return batch, nil
}

// evaluate scores one rule. It returns an error only when the batch context
// has ended; rule-level problems go into the record.
func (a *Aggregator) evaluate(ctx context.Context, i int, d rule.Descriptor) (Record, error) {
	start := time.Now()
	rec := Record{Index: i, Descriptor: d}

	ruleCtx := ctx
	if a.ruleTimeout > 0 {
		var cancel context.CancelFunc
		ruleCtx, cancel = context.WithTimeout(ctx, a.ruleTimeout)
		defer cancel()
	}

	res, err := a.score(ruleCtx, d)
	rec.Duration = time.Since(start)
	a.metrics.duration.Observe(rec.Duration.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return Record{}, ctx.Err()
		}
		kind := Kind(err)
		rec.Failure = &Failure{Rule: d.String(), Reason: kind, Err: err}
		a.metrics.rules.WithLabelValues("failed").Inc()
		a.metrics.failures.WithLabelValues(kind).Inc()
		return rec, nil
	}

	rec.Result = res
	rec.Raw = res.Raw()
	rec.Normalized = res.Normalized()
	a.metrics.rules.WithLabelValues("ok").Inc()
	return rec, nil
}

func (a *Aggregator) score(ctx context.Context, d rule.Descriptor) (pca.Result, error) {
	r, err := a.compiler.Parse(d)
	if err != nil {
		return pca.Result{}, err
	}
	return a.evaluator.Evaluate(ctx, r)
}

// Kind names the failure class of err for logs, reports and metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, internalerr.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, internalerr.ErrMalformedBody):
		return "malformed_body"
	case errors.Is(err, internalerr.ErrMalformedHead):
		return "malformed_head"
	case errors.Is(err, internalerr.ErrVariableCollision):
		return "variable_collision"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, internalerr.ErrStoreExecution):
		return "store_execution"
	default:
		return "other"
	}
}

func summarize(records []Record) Summary {
	s := Summary{Rules: len(records), FailuresByKind: make(map[string]int)}

	var rawValid, rawInvalid, normValid, normInvalid []float64
	for _, r := range records {
		if r.Failure != nil {
			s.Failed++
			s.FailuresByKind[r.Failure.Reason]++
			continue
		}
		s.Evaluated++
		rawValid = append(rawValid, r.Raw.Valid)
		rawInvalid = append(rawInvalid, r.Raw.Invalid)
		normValid = append(normValid, r.Normalized.Valid)
		normInvalid = append(normInvalid, r.Normalized.Invalid)
	}

	s.RawValid = describe(rawValid)
	s.RawInvalid = describe(rawInvalid)
	s.NormalizedValid = describe(normValid)
	s.NormalizedInvalid = describe(normInvalid)
	return s
}

// describe returns zero values for fewer than two samples where gonum yields NaN.
func describe(xs []float64) Stat {
	var st Stat
	if len(xs) == 0 {
		return st
	}
	st.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		st.StdDev = stat.StdDev(xs, nil)
	}
	if math.IsNaN(st.StdDev) {
		st.StdDev = 0
	}
	return st
}
