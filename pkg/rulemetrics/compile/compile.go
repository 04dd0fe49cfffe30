// Package compile turns mined rules into the three counting patterns the PCA
// evaluator needs for one entity partition.
package compile

import (
	"fmt"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/vocab"
)

const (
	// DefaultSubjectVariable is the entity variable mined rules are written over.
	DefaultSubjectVariable = "?a"
	// DefaultFreshVariable is the first candidate for the completeness object.
	DefaultFreshVariable = "?y"
	// DefaultMaxFreshAttempts bounds the search for an unused variable name.
	DefaultMaxFreshAttempts = 32
)

// Config holds everything a compiler needs. There is no package-level state.
type Config struct {
	Vocabulary       *vocab.Vocabulary
	EntityType       string // IRI of the class every counted entity belongs to
	TypePredicate    string // IRI relating an entity to its class
	SubjectVariable  string
	FreshVariable    string
	MaxFreshAttempts int
}

// Compiled holds the patterns for one rule and partition.
type Compiled struct {
	Partition       query.Label
	Support         query.Pattern
	Completeness    query.Pattern
	Counterexamples query.Pattern
}

// Patterns returns the three patterns keyed by role.
func (c Compiled) Patterns() map[string]query.Pattern {
	return map[string]query.Pattern{
		RoleSupport:         c.Support,
		RoleCompleteness:    c.Completeness,
		RoleCounterexamples: c.Counterexamples,
	}
}

// Pattern roles, also used to name failing queries.
const (
	RoleSupport         = "support"
	RoleCompleteness    = "completeness"
	RoleCounterexamples = "counterexamples"
)

// Compiler is safe for concurrent use once built.
type Compiler struct {
	cfg    Config
	parser rule.Parser
}

// New validates cfg, fills defaults and returns a compiler.
func New(cfg Config) (*Compiler, error) {
	if cfg.Vocabulary == nil {
		return nil, fmt.Errorf("compiler vocabulary is nil: %w", internalerr.ErrInvalidConfig)
	}
	if cfg.EntityType == "" || cfg.TypePredicate == "" {
		return nil, fmt.Errorf("compiler needs an entity type and type predicate: %w", internalerr.ErrInvalidConfig)
	}
	if cfg.SubjectVariable == "" {
		cfg.SubjectVariable = DefaultSubjectVariable
	}
	if cfg.FreshVariable == "" {
		cfg.FreshVariable = DefaultFreshVariable
	}
	if cfg.MaxFreshAttempts <= 0 {
		cfg.MaxFreshAttempts = DefaultMaxFreshAttempts
	}
	cfg.SubjectVariable = rule.Var(cfg.SubjectVariable).Value
	cfg.FreshVariable = rule.Var(cfg.FreshVariable).Value
	if cfg.SubjectVariable == cfg.FreshVariable {
		return nil, fmt.Errorf("fresh variable %s shadows the subject variable: %w", cfg.FreshVariable, internalerr.ErrInvalidConfig)
	}

	return &Compiler{
		cfg:    cfg,
		parser: rule.Parser{Entity: cfg.SubjectVariable, Resolver: cfg.Vocabulary},
	}, nil
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config { return c.cfg }

// Parse checks the structure of d and resolves its tokens.
func (c *Compiler) Parse(d rule.Descriptor) (rule.Rule, error) {
	return c.parser.Parse(d)
}

// Compile builds the support, completeness and counterexample patterns of r
// restricted to partition.
//
// Completeness replaces the head object with a variable unused anywhere in r,
// so it counts entities with any value for the head predicate. Counterexamples
// are completeness entities for which the exact head does not hold.
func (c *Compiler) Compile(r rule.Rule, partition query.Label) (Compiled, error) {
	if !partition.IsPartition() {
		return Compiled{}, fmt.Errorf("partition %q: %w", partition, internalerr.ErrInvalidInput)
	}

	fresh, err := rule.FreshVariable(c.cfg.FreshVariable, r.Variables(), c.cfg.MaxFreshAttempts)
	if err != nil {
		return Compiled{}, err
	}

	typeAtom := rule.NewAtom(r.Entity, rule.IRI(c.cfg.TypePredicate), rule.IRI(c.cfg.EntityType))
	base := make([]rule.Atom, 0, len(r.Body)+2)
	base = append(base, typeAtom)
	base = append(base, r.Body...)

	anyHead := rule.NewAtom(r.Entity, r.Head.Predicate, rule.Var(fresh))

	support := query.Pattern{Entity: r.Entity, Label: partition, Where: with(base, r.Head)}
	completeness := query.Pattern{Entity: r.Entity, Label: partition, Where: with(base, anyHead)}
	counter := completeness
	counter.Where = with(base, anyHead)
	counter.Absent = []rule.Atom{r.Head}

	return Compiled{
		Partition:       partition,
		Support:         support,
		Completeness:    completeness,
		Counterexamples: counter,
	}, nil
}

// CompileDescriptor parses d and compiles it for partition.
func (c *Compiler) CompileDescriptor(d rule.Descriptor, partition query.Label) (Compiled, error) {
	r, err := c.Parse(d)
	if err != nil {
		return Compiled{}, err
	}
	return c.Compile(r, partition)
}

func with(base []rule.Atom, last rule.Atom) []rule.Atom {
	out := make([]rule.Atom, 0, len(base)+1)
	out = append(out, base...)
	return append(out, last)
}
