// Package query defines the graph patterns executed against an entity store.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

// Label is the validity class assigned to an entity by the constraint checker.
type Label string

const (
	LabelValid       Label = "valid"
	LabelInvalid     Label = "invalid"
	LabelUnevaluated Label = "unevaluated"
)

// Partitions are the labels a rule is evaluated under.
var Partitions = []Label{LabelValid, LabelInvalid}

// ParseLabel accepts the label spellings found in status-annotated graphs.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid":
		return LabelValid, nil
	case "invalid":
		return LabelInvalid, nil
	case "unevaluated", "not_evaluated", "":
		return LabelUnevaluated, nil
	}
	return "", fmt.Errorf("label %q: %w", s, internalerr.ErrInvalidInput)
}

// IsPartition reports whether l is one of Partitions.
func (l Label) IsPartition() bool {
	return l == LabelValid || l == LabelInvalid
}

// Pattern is a conjunction of triple patterns over one distinguished entity
// variable, restricted to entities carrying Label. Where atoms must all hold
// under one binding; an entity is excluded if any Absent atom holds under that
// binding (variables first seen in an Absent atom are existential).
type Pattern struct {
	Entity rule.Term
	Label  Label
	Where  []rule.Atom
	Absent []rule.Atom
}

// Validate checks that the entity variable is bound by a Where atom.
func (p Pattern) Validate() error {
	if !p.Entity.IsVariable() {
		return fmt.Errorf("pattern entity %s is not a variable: %w", p.Entity, internalerr.ErrInvalidInput)
	}
	for _, a := range p.Where {
		for _, v := range a.Variables() {
			if v == p.Entity.Value {
				return nil
			}
		}
	}
	return fmt.Errorf("pattern never binds %s: %w", p.Entity.Value, internalerr.ErrInvalidInput)
}

// String renders the pattern as a counting query. The text is a pure function
// of the pattern, so it doubles as a cache key.
func (p Pattern) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT (COUNT(DISTINCT %s) AS ?count) WHERE {\n", p.Entity.Value)
	for _, a := range p.Where {
		fmt.Fprintf(&b, "  %s .\n", a)
	}
	if p.Label != "" {
		fmt.Fprintf(&b, "  FILTER (label(%s) = %s)\n", p.Entity.Value, strconv.Quote(string(p.Label)))
	}
	for _, a := range p.Absent {
		fmt.Fprintf(&b, "  FILTER NOT EXISTS { %s }\n", a)
	}
	b.WriteString("}")
	return b.String()
}
