package rule

import (
	"strconv"
	"strings"
)

// Kind tags a Term as a variable or a constant.
type Kind uint8

const (
	KindVariable Kind = iota
	KindIRI
	KindLiteral
)

// Term is one position of a triple pattern: a free variable or a bound constant.
type Term struct {
	Kind  Kind
	Value string // variable name including '?', IRI, or literal lexical form
}

// Var returns a variable term. The leading '?' is added when missing.
func Var(name string) Term {
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	return Term{Kind: KindVariable, Value: name}
}

// IRI returns a constant identifier term.
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Literal returns a constant plain-literal term.
func Literal(lexical string) Term {
	return Term{Kind: KindLiteral, Value: lexical}
}

// IsVariable reports whether t is free.
func (t Term) IsVariable() bool { return t.Kind == KindVariable }

// Key is the store representation of a constant: IRIs are stored bare and
// literals keep their double quotes, so the two never compare equal.
// For variables Key returns the variable name.
func (t Term) Key() string {
	if t.Kind == KindLiteral {
		return strconv.Quote(t.Value)
	}
	return t.Value
}

// String renders t in triple-pattern syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindLiteral:
		return strconv.Quote(t.Value)
	default:
		return t.Value
	}
}

// Atom is a triple pattern.
type Atom struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewAtom builds an atom from its three terms.
func NewAtom(s, p, o Term) Atom {
	return Atom{Subject: s, Predicate: p, Object: o}
}

// Terms returns the atom's terms in subject, predicate, object order.
func (a Atom) Terms() [3]Term {
	return [3]Term{a.Subject, a.Predicate, a.Object}
}

// Variables returns the names of the free terms, in position order.
func (a Atom) Variables() []string {
	var vars []string
	for _, t := range a.Terms() {
		if t.IsVariable() {
			vars = append(vars, t.Value)
		}
	}
	return vars
}

// String renders the atom as "s p o".
func (a Atom) String() string {
	return a.Subject.String() + " " + a.Predicate.String() + " " + a.Object.String()
}
