package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

func TestParseLabel(t *testing.T) {
	tests := map[string]Label{
		"valid":         LabelValid,
		" Invalid ":     LabelInvalid,
		"not_evaluated": LabelUnevaluated,
		"unevaluated":   LabelUnevaluated,
	}
	for in, want := range tests {
		got, err := ParseLabel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLabel("maybe")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestPatternString(t *testing.T) {
	p := Pattern{
		Entity: rule.Var("?a"),
		Label:  LabelValid,
		Where: []rule.Atom{
			rule.NewAtom(rule.Var("?a"), rule.IRI("ex:type"), rule.IRI("ex:Patient")),
			rule.NewAtom(rule.Var("?a"), rule.IRI("ex:patientDrug"), rule.Var("?y")),
		},
		Absent: []rule.Atom{
			rule.NewAtom(rule.Var("?a"), rule.IRI("ex:patientDrug"), rule.IRI("ex:Nivolumab")),
		},
	}

	want := "SELECT (COUNT(DISTINCT ?a) AS ?count) WHERE {\n" +
		"  ?a <ex:type> <ex:Patient> .\n" +
		"  ?a <ex:patientDrug> ?y .\n" +
		"  FILTER (label(?a) = \"valid\")\n" +
		"  FILTER NOT EXISTS { ?a <ex:patientDrug> <ex:Nivolumab> }\n" +
		"}"
	assert.Equal(t, want, p.String())
	assert.NoError(t, p.Validate())
}

func TestPatternValidate(t *testing.T) {
	p := Pattern{
		Entity: rule.Var("?a"),
		Where:  []rule.Atom{rule.NewAtom(rule.Var("?b"), rule.IRI("ex:p"), rule.IRI("ex:o"))},
	}
	assert.ErrorIs(t, p.Validate(), internalerr.ErrInvalidInput)

	p.Entity = rule.IRI("ex:a")
	assert.ErrorIs(t, p.Validate(), internalerr.ErrInvalidInput)
}
