package rule

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is a pass-through column carried from the rule file to the report.
type Field struct {
	Name  string
	Value string
}

// Descriptor is one mined rule as supplied: body and head text plus the static
// metrics the miner already computed.
type Descriptor struct {
	Body   string
	Head   string
	Static []Field
}

// Float returns the named static field parsed as a number.
func (d Descriptor) Float(name string) (float64, bool) {
	for _, f := range d.Static {
		if f.Name == name {
			v, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
			return v, err == nil
		}
	}
	return 0, false
}

// String renders the descriptor as "body => head".
func (d Descriptor) String() string {
	return strings.TrimSpace(d.Body) + " => " + strings.TrimSpace(d.Head)
}

// Rule is a parsed descriptor. Every body atom and the head share Entity as
// their subject; the head's predicate and object are constants.
type Rule struct {
	Entity Term
	Body   []Atom
	Head   Atom
}

// Variables returns the set of variable names used anywhere in the rule.
func (r Rule) Variables() map[string]struct{} {
	vars := make(map[string]struct{})
	for _, a := range r.Body {
		for _, v := range a.Variables() {
			vars[v] = struct{}{}
		}
	}
	for _, v := range r.Head.Variables() {
		vars[v] = struct{}{}
	}
	return vars
}

// String renders the rule in triple-pattern syntax.
func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, a := range r.Body {
		parts[i] = a.String()
	}
	return strings.Join(parts, " . ") + " => " + r.Head.String()
}

// Resolver maps a short token to its canonical constant.
type Resolver interface {
	Resolve(token string) (Term, error)
}

// Parser turns descriptors into rules. Structure is checked on the raw tokens
// before any token is resolved.
type Parser struct {
	Entity   string // designated entity variable, e.g. "?a"
	Resolver Resolver
}

// Parse parses both halves of d. Both halves are checked for shape before
// either is resolved, so a malformed head wins over an unknown body token.
func (p Parser) Parse(d Descriptor) (Rule, error) {
	entity := Var(p.Entity)

	bodyTokens, err := checkBody(d.Body, entity)
	if err != nil {
		return Rule{}, err
	}
	headTokens, err := checkHead(d.Head, entity)
	if err != nil {
		return Rule{}, err
	}

	body := make([]Atom, 0, len(bodyTokens)/3)
	for i := 0; i < len(bodyTokens); i += 3 {
		a, err := p.atom(entity, bodyTokens[i+1], bodyTokens[i+2], "body")
		if err != nil {
			return Rule{}, err
		}
		body = append(body, a)
	}
	head, err := p.atom(entity, headTokens[1], headTokens[2], "head")
	if err != nil {
		return Rule{}, err
	}
	return Rule{Entity: entity, Body: body, Head: head}, nil
}

func checkBody(text string, entity Term) ([]string, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, &MalformedBodyError{Text: text, Reason: "empty body"}
	}
	if len(tokens)%3 != 0 {
		return nil, &MalformedBodyError{Text: text, Reason: fmt.Sprintf("%d tokens is not a whole number of triples", len(tokens))}
	}

	for i := 0; i < len(tokens); i += 3 {
		if tokens[i] != entity.Value {
			return nil, &MalformedBodyError{Text: text, Reason: fmt.Sprintf("triple %d has subject %s, want %s", i/3+1, tokens[i], entity.Value)}
		}
		if isVariable(tokens[i+1]) {
			return nil, &MalformedBodyError{Text: text, Reason: fmt.Sprintf("triple %d has variable predicate %s", i/3+1, tokens[i+1])}
		}
	}
	return tokens, nil
}

func checkHead(text string, entity Term) ([]string, error) {
	tokens := strings.Fields(text)
	if len(tokens) != 3 {
		return nil, &MalformedHeadError{Text: text, Reason: fmt.Sprintf("want one triple, got %d tokens", len(tokens))}
	}

	vars := 0
	for _, tok := range tokens {
		if isVariable(tok) {
			vars++
		}
	}
	switch {
	case vars != 1:
		return nil, &MalformedHeadError{Text: text, Reason: fmt.Sprintf("want exactly one variable, got %d", vars)}
	case tokens[0] != entity.Value:
		return nil, &MalformedHeadError{Text: text, Reason: fmt.Sprintf("subject %s is not the entity variable %s", tokens[0], entity.Value)}
	}
	return tokens, nil
}

func (p Parser) atom(entity Term, predTok, objTok, part string) (Atom, error) {
	pred, err := p.term(predTok, part)
	if err != nil {
		return Atom{}, err
	}
	obj, err := p.term(objTok, part)
	if err != nil {
		return Atom{}, err
	}
	return NewAtom(entity, pred, obj), nil
}

func (p Parser) term(tok, part string) (Term, error) {
	if isVariable(tok) {
		return Var(tok), nil
	}
	if len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
		return Literal(tok[1 : len(tok)-1]), nil
	}
	if p.Resolver == nil {
		return Term{}, &UnknownTokenError{Token: tok, Part: part}
	}
	t, err := p.Resolver.Resolve(tok)
	if err != nil {
		if ute, ok := err.(*UnknownTokenError); ok && ute.Part == "" {
			return Term{}, &UnknownTokenError{Token: ute.Token, Part: part}
		}
		return Term{}, err
	}
	return t, nil
}

func isVariable(tok string) bool {
	return len(tok) > 1 && tok[0] == '?'
}

// FreshVariable returns base, or base with 'a' appended until it names a
// variable not in used. It gives up after maxAttempts candidates.
func FreshVariable(base string, used map[string]struct{}, maxAttempts int) (string, error) {
	name := Var(base).Value
	for i := 0; i < maxAttempts; i++ {
		if _, taken := used[name]; !taken {
			return name, nil
		}
		name += "a"
	}
	return "", &VariableCollisionError{Base: Var(base).Value, Attempts: maxAttempts}
}
