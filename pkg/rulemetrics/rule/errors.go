package rule

import (
	"fmt"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
)

// UnknownTokenError reports a predicate or constant absent from the vocabulary.
type UnknownTokenError struct {
	Token string
	Part  string // "body" or "head"; empty when raised by the vocabulary itself
}

func (e *UnknownTokenError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("unknown token %q", e.Token)
	}
	return fmt.Sprintf("unknown token %q in %s", e.Token, e.Part)
}

func (e *UnknownTokenError) Unwrap() error { return internalerr.ErrUnknownToken }

// MalformedBodyError reports a body that does not parse into well-formed triples.
type MalformedBodyError struct {
	Text   string
	Reason string
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("malformed body %q: %s", e.Text, e.Reason)
}

func (e *MalformedBodyError) Unwrap() error { return internalerr.ErrMalformedBody }

// MalformedHeadError reports a head that is not a single triple with the entity
// variable as its only free term.
type MalformedHeadError struct {
	Text   string
	Reason string
}

func (e *MalformedHeadError) Error() string {
	return fmt.Sprintf("malformed head %q: %s", e.Text, e.Reason)
}

func (e *MalformedHeadError) Unwrap() error { return internalerr.ErrMalformedHead }

// VariableCollisionError reports that no unused variable name was found.
type VariableCollisionError struct {
	Base     string
	Attempts int
}

func (e *VariableCollisionError) Error() string {
	return fmt.Sprintf("no fresh variable from %s after %d attempts", e.Base, e.Attempts)
}

func (e *VariableCollisionError) Unwrap() error { return internalerr.ErrVariableCollision }
