// Package vocab maps the short predicate and constant tokens used in mined
// rules to their canonical identifiers.
package vocab

import (
	"sort"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

// Vocabulary is a read-only token table once handed to a compiler.
type Vocabulary struct {
	namespace string
	terms     map[string]rule.Term
}

// New creates an empty vocabulary whose identifiers live under namespace.
func New(namespace string) *Vocabulary {
	return &Vocabulary{
		namespace: namespace,
		terms:     make(map[string]rule.Term),
	}
}

// Namespace returns the base IRI for identifiers added with AddIdentifier.
func (v *Vocabulary) Namespace() string { return v.namespace }

// AddIdentifier maps token to namespace+token.
func (v *Vocabulary) AddIdentifier(token string) {
	v.terms[token] = rule.IRI(v.namespace + token)
}

// AddAlias maps token to an arbitrary IRI.
func (v *Vocabulary) AddAlias(token, iri string) {
	v.terms[token] = rule.IRI(iri)
}

// AddLiteral maps token to a plain literal with the same lexical form.
func (v *Vocabulary) AddLiteral(token string) {
	v.terms[token] = rule.Literal(token)
}

// Expand returns namespace+name; it does not consult the table.
func (v *Vocabulary) Expand(name string) string {
	return v.namespace + name
}

// Resolve implements rule.Resolver. Lookup is on the whole token only.
func (v *Vocabulary) Resolve(token string) (rule.Term, error) {
	if t, ok := v.terms[token]; ok {
		return t, nil
	}
	return rule.Term{}, &rule.UnknownTokenError{Token: token}
}

// Tokens returns all known tokens, sorted.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, 0, len(v.terms))
	for tok := range v.terms {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.terms) }
