package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

// DefaultBatchSize is the number of facts buffered for a BatchLoader.
const DefaultBatchSize = 1000

// BatchLoader is implemented by stores that insert many facts at once.
type BatchLoader interface {
	AddFacts(ctx context.Context, facts []store.Fact) error
}

// GraphStats counts what a graph read loaded.
type GraphStats struct {
	Lines  int
	Facts  int
	Labels int
}

// NTriplesReader loads an N-Triples graph into a store. Triples whose
// predicate is StatusPredicate set the subject's label instead of adding a
// fact.
type NTriplesReader struct {
	StatusPredicate string
	BatchSize       int
}

// ReadNTriples loads r into l using statusPredicate for labels.
func ReadNTriples(ctx context.Context, r io.Reader, l store.Loader, statusPredicate string) (GraphStats, error) {
	return NTriplesReader{StatusPredicate: statusPredicate}.Read(ctx, r, l)
}

// Read parses r line by line. Blank lines and comments are skipped.
func (nr NTriplesReader) Read(ctx context.Context, r io.Reader, l store.Loader) (GraphStats, error) {
	var st GraphStats

	batchSize := nr.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	bl, batching := l.(BatchLoader)
	var pending []store.Fact
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := bl.AddFacts(ctx, pending)
		pending = pending[:0]
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		st.Lines++
		if st.Lines%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}

		f, ok, err := ParseTriple(scanner.Text())
		if err != nil {
			return st, fmt.Errorf("line %d: %w", st.Lines, err)
		}
		if !ok {
			continue
		}

		if nr.StatusPredicate != "" && f.Predicate == nr.StatusPredicate {
			label, err := query.ParseLabel(unquote(f.Object))
			if err != nil {
				return st, fmt.Errorf("line %d: %w", st.Lines, err)
			}
			if err := l.SetLabel(ctx, f.Subject, label); err != nil {
				return st, err
			}
			st.Labels++
			continue
		}

		st.Facts++
		if !batching {
			if err := l.AddFact(ctx, f); err != nil {
				return st, err
			}
			continue
		}
		pending = append(pending, f)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return st, err
	}
	if batching {
		if err := flush(); err != nil {
			return st, err
		}
	}
	return st, nil
}

// unquote strips the quotes a literal carries in store key form.
func unquote(key string) string {
	if s, err := strconv.Unquote(key); err == nil {
		return s
	}
	return key
}

// ParseTriple parses one N-Triples line into store key form. ok is false for
// blank lines and comments. Literal datatypes and language tags are dropped.
func ParseTriple(line string) (f store.Fact, ok bool, err error) {
	rest := strings.TrimSpace(line)
	if rest == "" || strings.HasPrefix(rest, "#") {
		return store.Fact{}, false, nil
	}

	var terms [3]string
	for i := range terms {
		var kind rule.Kind
		terms[i], kind, rest, err = nextTerm(rest)
		if err != nil {
			return store.Fact{}, false, err
		}
		if kind == rule.KindLiteral && i < 2 {
			return store.Fact{}, false, fmt.Errorf("literal in %s position: %w", [2]string{"subject", "predicate"}[i], internalerr.ErrInvalidInput)
		}
		rest = strings.TrimLeft(rest, " \t")
	}
	if !strings.HasPrefix(rest, ".") {
		return store.Fact{}, false, fmt.Errorf("missing terminating '.': %w", internalerr.ErrInvalidInput)
	}
	if tail := strings.TrimSpace(rest[1:]); tail != "" && !strings.HasPrefix(tail, "#") {
		return store.Fact{}, false, fmt.Errorf("trailing text %q: %w", tail, internalerr.ErrInvalidInput)
	}
	return store.Fact{Subject: terms[0], Predicate: terms[1], Object: terms[2]}, true, nil
}

// nextTerm reads one term from the front of s and returns its key.
func nextTerm(s string) (key string, kind rule.Kind, rest string, err error) {
	switch {
	case strings.HasPrefix(s, "<"):
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return "", 0, "", fmt.Errorf("unterminated IRI: %w", internalerr.ErrInvalidInput)
		}
		return rule.IRI(s[1:end]).Key(), rule.KindIRI, s[end+1:], nil

	case strings.HasPrefix(s, "_:"):
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return "", 0, "", fmt.Errorf("blank node %q ends the line: %w", s, internalerr.ErrInvalidInput)
		}
		return s[:end], rule.KindIRI, s[end:], nil

	case strings.HasPrefix(s, `"`):
		end := closingQuote(s)
		if end < 0 {
			return "", 0, "", fmt.Errorf("unterminated literal: %w", internalerr.ErrInvalidInput)
		}
		lexical, err := strconv.Unquote(s[:end+1])
		if err != nil {
			return "", 0, "", fmt.Errorf("literal %s: %w", s[:end+1], internalerr.ErrInvalidInput)
		}
		rest := s[end+1:]
		switch {
		case strings.HasPrefix(rest, "^^<"):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return "", 0, "", fmt.Errorf("unterminated datatype: %w", internalerr.ErrInvalidInput)
			}
			rest = rest[gt+1:]
		case strings.HasPrefix(rest, "@"):
			n := strings.IndexAny(rest, " \t.")
			if n < 0 {
				n = len(rest)
			}
			rest = rest[n:]
		}
		return rule.Literal(lexical).Key(), rule.KindLiteral, rest, nil
	}
	return "", 0, "", fmt.Errorf("unexpected term at %q: %w", s, internalerr.ErrInvalidInput)
}

// closingQuote returns the index of the quote ending the literal at s[0].
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
