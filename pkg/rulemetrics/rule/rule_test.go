package rule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
)

type mapResolver map[string]Term

func (m mapResolver) Resolve(tok string) (Term, error) {
	if t, ok := m[tok]; ok {
		return t, nil
	}
	return Term{}, &UnknownTokenError{Token: tok}
}

const ns = "http://example.org/lungCancer/entity/"

func testParser() Parser {
	return Parser{
		Entity: "?a",
		Resolver: mapResolver{
			"treatmentType":            IRI(ns + "treatmentType"),
			"hasRelapse_Progression":   IRI(ns + "hasRelapse_Progression"),
			"patientDrug":              IRI(ns + "patientDrug"),
			"Immunotherapy":            IRI(ns + "Immunotherapy"),
			"Progression":              IRI(ns + "Progression"),
			"Nivolumab":                IRI(ns + "Nivolumab"),
			"hasSmokingHabit":          IRI(ns + "hasSmokingHabit"),
			"Intravenous_Chemotherapy": IRI(ns + "Intravenous_Chemotherapy"),
		},
	}
}

func TestParseWellFormed(t *testing.T) {
	r, err := testParser().Parse(Descriptor{
		Body: "?a hasRelapse_Progression Progression ?a treatmentType Immunotherapy",
		Head: "?a patientDrug Nivolumab",
	})
	require.NoError(t, err)

	assert.Equal(t, Var("?a"), r.Entity)
	require.Len(t, r.Body, 2)
	assert.Equal(t, IRI(ns+"hasRelapse_Progression"), r.Body[0].Predicate)
	assert.Equal(t, IRI(ns+"Immunotherapy"), r.Body[1].Object)
	assert.Equal(t, NewAtom(Var("a"), IRI(ns+"patientDrug"), IRI(ns+"Nivolumab")), r.Head)
}

func TestParseBodyObjectVariable(t *testing.T) {
	r, err := testParser().Parse(Descriptor{
		Body: "?a hasSmokingHabit ?b",
		Head: "?a patientDrug Nivolumab",
	})
	require.NoError(t, err)
	assert.True(t, r.Body[0].Object.IsVariable())
	assert.Contains(t, r.Variables(), "?b")
}

func TestParseQuotedLiteralBypassesVocabulary(t *testing.T) {
	r, err := testParser().Parse(Descriptor{
		Body: `?a hasSmokingHabit "FormerSmoker"`,
		Head: "?a patientDrug Nivolumab",
	})
	require.NoError(t, err)
	assert.Equal(t, Literal("FormerSmoker"), r.Body[0].Object)
}

func TestParseMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "   "},
		{"not a multiple of three", "?a treatmentType"},
		{"wrong subject", "?b treatmentType Immunotherapy"},
		{"variable predicate", "?a ?p Immunotherapy"},
		{"second triple wrong subject", "?a treatmentType Immunotherapy Nivolumab treatmentType Immunotherapy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testParser().Parse(Descriptor{Body: tt.body, Head: "?a patientDrug Nivolumab"})
			var mbe *MalformedBodyError
			require.ErrorAs(t, err, &mbe)
			assert.ErrorIs(t, err, internalerr.ErrMalformedBody)
		})
	}
}

func TestParseMalformedHead(t *testing.T) {
	tests := []struct {
		name string
		head string
	}{
		{"zero variables", "Const1 pred Const2"},
		{"two triples", "?a patientDrug Nivolumab ?a patientDrug Nivolumab"},
		{"object variable", "?a patientDrug ?y"},
		{"subject not entity", "?b patientDrug Nivolumab"},
		{"predicate variable", "Nivolumab ?p Nivolumab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testParser().Parse(Descriptor{Body: "?a treatmentType Immunotherapy", Head: tt.head})
			var mhe *MalformedHeadError
			require.ErrorAs(t, err, &mhe)
			assert.ErrorIs(t, err, internalerr.ErrMalformedHead)
		})
	}
}

func TestParseMalformedHeadIsDeterministic(t *testing.T) {
	p := testParser()
	d := Descriptor{Body: "?a treatmentType Immunotherapy", Head: "Const1 pred Const2"}
	_, first := p.Parse(d)
	_, second := p.Parse(d)
	require.Error(t, first)
	assert.Equal(t, first.Error(), second.Error())
}

func TestParseMalformedHeadBeforeUnknownBodyToken(t *testing.T) {
	_, err := testParser().Parse(Descriptor{Body: "?a hasX Unknownish", Head: "Const1 pred Const2"})
	var mhe *MalformedHeadError
	require.ErrorAs(t, err, &mhe)
	assert.False(t, errors.Is(err, internalerr.ErrUnknownToken))
}

func TestParseUnknownToken(t *testing.T) {
	_, err := testParser().Parse(Descriptor{
		Body: "?a treatmentType Homeopathy",
		Head: "?a patientDrug Nivolumab",
	})
	var ute *UnknownTokenError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "Homeopathy", ute.Token)
	assert.Equal(t, "body", ute.Part)
	assert.True(t, errors.Is(err, internalerr.ErrUnknownToken))
}

func TestParseUnknownTokenSubstringOfKnown(t *testing.T) {
	// "Progress" is a prefix of "Progression" and must not resolve.
	_, err := testParser().Parse(Descriptor{
		Body: "?a hasRelapse_Progression Progress",
		Head: "?a patientDrug Nivolumab",
	})
	assert.ErrorIs(t, err, internalerr.ErrUnknownToken)
}

func TestFreshVariable(t *testing.T) {
	name, err := FreshVariable("?y", map[string]struct{}{"?a": {}}, 8)
	require.NoError(t, err)
	assert.Equal(t, "?y", name)

	name, err = FreshVariable("y", map[string]struct{}{"?a": {}, "?y": {}}, 8)
	require.NoError(t, err)
	assert.Equal(t, "?ya", name)

	name, err = FreshVariable("?y", map[string]struct{}{"?y": {}, "?ya": {}}, 8)
	require.NoError(t, err)
	assert.Equal(t, "?yaa", name)
}

func TestFreshVariableCollision(t *testing.T) {
	used := map[string]struct{}{"?y": {}, "?ya": {}}
	_, err := FreshVariable("?y", used, 2)
	var vce *VariableCollisionError
	require.ErrorAs(t, err, &vce)
	assert.ErrorIs(t, err, internalerr.ErrVariableCollision)
}

func TestDescriptorFloat(t *testing.T) {
	d := Descriptor{Static: []Field{{Name: "Head_Coverage", Value: " 0.25 "}, {Name: "Functional_variable", Value: "?a"}}}

	v, ok := d.Float("Head_Coverage")
	assert.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-12)

	_, ok = d.Float("Functional_variable")
	assert.False(t, ok)
	_, ok = d.Float("missing")
	assert.False(t, ok)
}

func TestTermKeys(t *testing.T) {
	assert.Equal(t, ns+"Male", IRI(ns+"Male").Key())
	assert.Equal(t, `"Male"`, Literal("Male").Key())
	assert.NotEqual(t, IRI("Male").Key(), Literal("Male").Key())
	assert.Equal(t, "<"+ns+"Male>", IRI(ns+"Male").String())
}
