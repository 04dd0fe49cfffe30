package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

func TestResolve(t *testing.T) {
	v := New("http://example.org/lungCancer/entity/")
	v.AddIdentifier("patientDrug")
	v.AddAlias("type", "http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	v.AddLiteral("valid")

	got, err := v.Resolve("patientDrug")
	require.NoError(t, err)
	assert.Equal(t, rule.IRI("http://example.org/lungCancer/entity/patientDrug"), got)

	got, err = v.Resolve("type")
	require.NoError(t, err)
	assert.Equal(t, rule.KindIRI, got.Kind)

	got, err = v.Resolve("valid")
	require.NoError(t, err)
	assert.Equal(t, rule.Literal("valid"), got)

	assert.Equal(t, []string{"patientDrug", "type", "valid"}, v.Tokens())
	assert.Equal(t, 3, v.Len())
}

func TestResolveWholeTokenOnly(t *testing.T) {
	v := New("ex:")
	v.AddIdentifier("IV")
	v.AddIdentifier("Intravenous_Chemotherapy")

	_, err := v.Resolve("I")
	assert.ErrorIs(t, err, internalerr.ErrUnknownToken)

	got, err := v.Resolve("Intravenous_Chemotherapy")
	require.NoError(t, err)
	assert.Equal(t, "ex:Intravenous_Chemotherapy", got.Value)
}
