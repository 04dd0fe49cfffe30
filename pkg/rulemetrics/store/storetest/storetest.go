// Package storetest is a conformance suite shared by the store backends.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

// Backend is a store that can also be loaded.
type Backend interface {
	store.Store
	store.Loader
}

// Open returns an empty backend; the suite closes it.
type Open func(t *testing.T) Backend

const (
	NS      = "http://example.org/lungCancer/entity/"
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

var (
	entity  = rule.Var("?a")
	typeOf  = rule.NewAtom(entity, rule.IRI(RDFType), rule.IRI(NS+"Patient"))
	relapse = rule.NewAtom(entity, rule.IRI(NS+"hasRelapse_Progression"), rule.IRI(NS+"Progression"))
	therapy = rule.NewAtom(entity, rule.IRI(NS+"treatmentType"), rule.IRI(NS+"Immunotherapy"))
	head    = rule.NewAtom(entity, rule.IRI(NS+"patientDrug"), rule.IRI(NS+"Nivolumab"))
	anyDrug = rule.NewAtom(entity, rule.IRI(NS+"patientDrug"), rule.Var("?y"))
)

// Patient loads a patient with the two body facts, an optional drug and a label.
// An empty label leaves the patient unevaluated.
func Patient(t *testing.T, l store.Loader, id, drug string, label query.Label) {
	t.Helper()
	ctx := context.Background()
	subj := NS + id
	facts := []store.Fact{
		{Subject: subj, Predicate: RDFType, Object: NS + "Patient"},
		{Subject: subj, Predicate: relapse.Predicate.Value, Object: relapse.Object.Value},
		{Subject: subj, Predicate: therapy.Predicate.Value, Object: therapy.Object.Value},
	}
	if drug != "" {
		facts = append(facts, store.Fact{Subject: subj, Predicate: NS + "patientDrug", Object: NS + drug})
	}
	for _, f := range facts {
		require.NoError(t, l.AddFact(ctx, f))
	}
	if label != "" {
		require.NoError(t, l.SetLabel(ctx, subj, label))
	}
}

func support(l query.Label) query.Pattern {
	return query.Pattern{Entity: entity, Label: l, Where: []rule.Atom{typeOf, relapse, therapy, head}}
}

func completeness(l query.Label) query.Pattern {
	return query.Pattern{Entity: entity, Label: l, Where: []rule.Atom{typeOf, relapse, therapy, anyDrug}}
}

func counterexamples(l query.Label) query.Pattern {
	p := completeness(l)
	p.Absent = []rule.Atom{head}
	return p
}

func count(t *testing.T, s store.Store, p query.Pattern) int64 {
	t.Helper()
	n, err := s.CountDistinct(context.Background(), p)
	require.NoError(t, err, p.String())
	return n
}

// Run executes every conformance test against open.
func Run(t *testing.T, open Open) {
	t.Run("PCAExamples", func(t *testing.T) { testPCAExamples(t, open) })
	t.Run("LabelPartitions", func(t *testing.T) { testLabelPartitions(t, open) })
	t.Run("TypeRestriction", func(t *testing.T) { testTypeRestriction(t, open) })
	t.Run("ObjectVariableJoin", func(t *testing.T) { testObjectVariableJoin(t, open) })
	t.Run("LiteralsAreNotIdentifiers", func(t *testing.T) { testLiterals(t, open) })
	t.Run("ExistentialAbsent", func(t *testing.T) { testExistentialAbsent(t, open) })
	t.Run("UnboundEntityRejected", func(t *testing.T) { testUnboundEntity(t, open) })
	t.Run("LabelsAndStats", func(t *testing.T) { testLabelsAndStats(t, open) })
}

func testPCAExamples(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()

	Patient(t, s, "P1", "Nivolumab", query.LabelValid)
	Patient(t, s, "P2", "", query.LabelValid)

	assert.Equal(t, int64(1), count(t, s, support(query.LabelValid)))
	assert.Equal(t, int64(1), count(t, s, completeness(query.LabelValid)), "P2 has no patientDrug at all")
	assert.Equal(t, int64(0), count(t, s, counterexamples(query.LabelValid)))

	Patient(t, s, "P3", "Pemetrexed", query.LabelValid)

	assert.Equal(t, int64(1), count(t, s, support(query.LabelValid)))
	assert.Equal(t, int64(2), count(t, s, completeness(query.LabelValid)))
	assert.Equal(t, int64(1), count(t, s, counterexamples(query.LabelValid)))
}

func testLabelPartitions(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()

	Patient(t, s, "P1", "Nivolumab", query.LabelValid)
	Patient(t, s, "P4", "Nivolumab", query.LabelInvalid)
	Patient(t, s, "P5", "Pemetrexed", query.LabelInvalid)
	Patient(t, s, "P6", "Nivolumab", "")

	assert.Equal(t, int64(1), count(t, s, support(query.LabelValid)))
	assert.Equal(t, int64(1), count(t, s, support(query.LabelInvalid)))
	assert.Equal(t, int64(2), count(t, s, completeness(query.LabelInvalid)))
	assert.Equal(t, int64(1), count(t, s, support(query.LabelUnevaluated)))

	unrestricted := support("")
	assert.Equal(t, int64(3), count(t, s, unrestricted))
}

func testTypeRestriction(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	Patient(t, s, "P1", "Nivolumab", query.LabelValid)

	// Same body and head facts, but not typed as a patient.
	doc := NS + "D1"
	for _, f := range []store.Fact{
		{Subject: doc, Predicate: relapse.Predicate.Value, Object: relapse.Object.Value},
		{Subject: doc, Predicate: therapy.Predicate.Value, Object: therapy.Object.Value},
		{Subject: doc, Predicate: head.Predicate.Value, Object: head.Object.Value},
	} {
		require.NoError(t, s.AddFact(ctx, f))
	}
	require.NoError(t, s.SetLabel(ctx, doc, query.LabelValid))

	assert.Equal(t, int64(1), count(t, s, support(query.LabelValid)))
}

func testObjectVariableJoin(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	// P1's stage equals its recorded target stage; P2's does not.
	for _, f := range []store.Fact{
		{Subject: NS + "P1", Predicate: RDFType, Object: NS + "Patient"},
		{Subject: NS + "P1", Predicate: NS + "hasStage", Object: NS + "IV"},
		{Subject: NS + "P1", Predicate: NS + "targetStage", Object: NS + "IV"},
		{Subject: NS + "P2", Predicate: RDFType, Object: NS + "Patient"},
		{Subject: NS + "P2", Predicate: NS + "hasStage", Object: NS + "IV"},
		{Subject: NS + "P2", Predicate: NS + "targetStage", Object: NS + "IIIA"},
	} {
		require.NoError(t, s.AddFact(ctx, f))
	}
	stage := rule.Var("?b")
	p := query.Pattern{
		Entity: entity,
		Where: []rule.Atom{
			typeOf,
			rule.NewAtom(entity, rule.IRI(NS+"hasStage"), stage),
			rule.NewAtom(entity, rule.IRI(NS+"targetStage"), stage),
		},
	}
	assert.Equal(t, int64(1), count(t, s, p))
}

func testLiterals(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.AddFact(ctx, store.Fact{Subject: NS + "P1", Predicate: RDFType, Object: NS + "Patient"}))
	require.NoError(t, s.AddFact(ctx, store.Fact{Subject: NS + "P1", Predicate: NS + "hasGender", Object: rule.Literal("Male").Key()}))
	require.NoError(t, s.AddFact(ctx, store.Fact{Subject: NS + "P2", Predicate: RDFType, Object: NS + "Patient"}))
	require.NoError(t, s.AddFact(ctx, store.Fact{Subject: NS + "P2", Predicate: NS + "hasGender", Object: NS + "Male"}))

	lit := query.Pattern{Entity: entity, Where: []rule.Atom{typeOf, rule.NewAtom(entity, rule.IRI(NS+"hasGender"), rule.Literal("Male"))}}
	iri := query.Pattern{Entity: entity, Where: []rule.Atom{typeOf, rule.NewAtom(entity, rule.IRI(NS+"hasGender"), rule.IRI(NS+"Male"))}}

	assert.Equal(t, int64(1), count(t, s, lit))
	assert.Equal(t, int64(1), count(t, s, iri))
}

func testExistentialAbsent(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()

	Patient(t, s, "P1", "Nivolumab", query.LabelValid)
	Patient(t, s, "P2", "", query.LabelValid)
	Patient(t, s, "P3", "Pemetrexed", query.LabelValid)

	noDrug := query.Pattern{
		Entity: entity,
		Label:  query.LabelValid,
		Where:  []rule.Atom{typeOf, relapse, therapy},
		Absent: []rule.Atom{rule.NewAtom(entity, rule.IRI(NS+"patientDrug"), rule.Var("?z"))},
	}
	assert.Equal(t, int64(1), count(t, s, noDrug))
}

func testUnboundEntity(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()

	p := query.Pattern{Entity: rule.Var("?x"), Where: []rule.Atom{typeOf}}
	_, err := s.CountDistinct(context.Background(), p)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func testLabelsAndStats(t *testing.T, open Open) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	Patient(t, s, "P1", "Nivolumab", query.LabelValid)
	Patient(t, s, "P2", "", query.LabelInvalid)
	Patient(t, s, "P3", "", "")

	l, err := s.Label(ctx, NS+"P1")
	require.NoError(t, err)
	assert.Equal(t, query.LabelValid, l)

	l, err = s.Label(ctx, NS+"P3")
	require.NoError(t, err)
	assert.Equal(t, query.LabelUnevaluated, l)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Facts)
	assert.Equal(t, int64(1), st.Labels[query.LabelValid])
	assert.Equal(t, int64(1), st.Labels[query.LabelInvalid])
}

// Entity returns the entity variable used by the fixtures.
func Entity() rule.Term { return entity }

// Body returns the type restriction and the two body atoms the fixtures satisfy.
func Body() []rule.Atom { return []rule.Atom{typeOf, relapse, therapy} }
