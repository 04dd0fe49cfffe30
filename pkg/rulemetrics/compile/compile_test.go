package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/vocab"
)

const ns = "http://example.org/lungCancer/entity/"

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	v := vocab.New(ns)
	for _, tok := range []string{"hasRelapse_Progression", "Progression", "treatmentType", "Immunotherapy", "patientDrug", "Nivolumab", "hasStage"} {
		v.AddIdentifier(tok)
	}
	c, err := New(Config{
		Vocabulary:    v,
		EntityType:    ns + "Patient",
		TypePredicate: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type",
	})
	require.NoError(t, err)
	return c
}

var nivolumab = rule.Descriptor{
	Body: "?a hasRelapse_Progression Progression ?a treatmentType Immunotherapy",
	Head: "?a patientDrug Nivolumab",
}

func TestNewRequiresVocabularyAndType(t *testing.T) {
	_, err := New(Config{EntityType: "x", TypePredicate: "y"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = New(Config{Vocabulary: vocab.New(ns)})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = New(Config{Vocabulary: vocab.New(ns), EntityType: "x", TypePredicate: "y", FreshVariable: "a"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestCompileShapes(t *testing.T) {
	c := newCompiler(t)
	got, err := c.CompileDescriptor(nivolumab, query.LabelValid)
	require.NoError(t, err)

	a := rule.Var("?a")
	typeAtom := rule.NewAtom(a, rule.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"), rule.IRI(ns+"Patient"))
	relapse := rule.NewAtom(a, rule.IRI(ns+"hasRelapse_Progression"), rule.IRI(ns+"Progression"))
	therapy := rule.NewAtom(a, rule.IRI(ns+"treatmentType"), rule.IRI(ns+"Immunotherapy"))
	head := rule.NewAtom(a, rule.IRI(ns+"patientDrug"), rule.IRI(ns+"Nivolumab"))
	anyDrug := rule.NewAtom(a, rule.IRI(ns+"patientDrug"), rule.Var("?y"))

	assert.Equal(t, query.Pattern{Entity: a, Label: query.LabelValid, Where: []rule.Atom{typeAtom, relapse, therapy, head}}, got.Support)
	assert.Equal(t, query.Pattern{Entity: a, Label: query.LabelValid, Where: []rule.Atom{typeAtom, relapse, therapy, anyDrug}}, got.Completeness)
	assert.Equal(t, query.Pattern{
		Entity: a,
		Label:  query.LabelValid,
		Where:  []rule.Atom{typeAtom, relapse, therapy, anyDrug},
		Absent: []rule.Atom{head},
	}, got.Counterexamples)
	assert.Len(t, got.Patterns(), 3)
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newCompiler(t)
	first, err := c.CompileDescriptor(nivolumab, query.LabelInvalid)
	require.NoError(t, err)
	second, err := c.CompileDescriptor(nivolumab, query.LabelInvalid)
	require.NoError(t, err)

	for role, p := range first.Patterns() {
		assert.Equal(t, p.String(), second.Patterns()[role].String(), role)
	}
}

func TestFreshVariableAvoidsBodyVariables(t *testing.T) {
	c := newCompiler(t)
	got, err := c.CompileDescriptor(rule.Descriptor{
		Body: "?a hasStage ?y",
		Head: "?a patientDrug Nivolumab",
	}, query.LabelValid)
	require.NoError(t, err)

	last := got.Completeness.Where[len(got.Completeness.Where)-1]
	assert.Equal(t, rule.Var("?ya"), last.Object)
}

func TestCompileRejectsUnevaluatedPartition(t *testing.T) {
	c := newCompiler(t)
	_, err := c.CompileDescriptor(nivolumab, query.LabelUnevaluated)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestCompileParseErrors(t *testing.T) {
	c := newCompiler(t)
	tests := []struct {
		name string
		d    rule.Descriptor
		want error
	}{
		{"unknown token", rule.Descriptor{Body: "?a hasRelapse_Progression Relapse", Head: "?a patientDrug Nivolumab"}, internalerr.ErrUnknownToken},
		{"constant head", rule.Descriptor{Body: "?a hasStage ?b", Head: "Const1 pred Const2"}, internalerr.ErrMalformedHead},
		{"short body", rule.Descriptor{Body: "?a hasStage", Head: "?a patientDrug Nivolumab"}, internalerr.ErrMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CompileDescriptor(tt.d, query.LabelValid)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
