package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
)

const testGraph = `<http://example.org/lungCancer/entity/P1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/lungCancer/entity/Patient> .
<http://example.org/lungCancer/entity/P1> <http://example.org/lungCancer/entity/hasRelapse_Progression> <http://example.org/lungCancer/entity/Progression> .
<http://example.org/lungCancer/entity/P1> <http://example.org/lungCancer/entity/treatmentType> <http://example.org/lungCancer/entity/Immunotherapy> .
<http://example.org/lungCancer/entity/P1> <http://example.org/lungCancer/entity/patientDrug> <http://example.org/lungCancer/entity/Nivolumab> .
<http://example.org/lungCancer/entity/P1> <http://example.org/lungCancer/entity/hasValidationStatus> "valid" .
<http://example.org/lungCancer/entity/P2> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/lungCancer/entity/Patient> .
<http://example.org/lungCancer/entity/P2> <http://example.org/lungCancer/entity/hasRelapse_Progression> <http://example.org/lungCancer/entity/Progression> .
<http://example.org/lungCancer/entity/P2> <http://example.org/lungCancer/entity/treatmentType> <http://example.org/lungCancer/entity/Immunotherapy> .
<http://example.org/lungCancer/entity/P2> <http://example.org/lungCancer/entity/patientDrug> <http://example.org/lungCancer/entity/Pemetrexed> .
<http://example.org/lungCancer/entity/P2> <http://example.org/lungCancer/entity/hasValidationStatus> "valid" .
<http://example.org/lungCancer/entity/P3> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/lungCancer/entity/Patient> .
<http://example.org/lungCancer/entity/P3> <http://example.org/lungCancer/entity/hasRelapse_Progression> <http://example.org/lungCancer/entity/Progression> .
<http://example.org/lungCancer/entity/P3> <http://example.org/lungCancer/entity/treatmentType> <http://example.org/lungCancer/entity/Immunotherapy> .
<http://example.org/lungCancer/entity/P3> <http://example.org/lungCancer/entity/patientDrug> <http://example.org/lungCancer/entity/Nivolumab> .
<http://example.org/lungCancer/entity/P3> <http://example.org/lungCancer/entity/hasValidationStatus> "invalid" .
`

const testRules = `Body,Head,PCA_Confidence
?a hasRelapse_Progression Progression ?a treatmentType Immunotherapy,?a patientDrug Nivolumab,0.66
?a hasRelapse_Progression Relapse,?a patientDrug Nivolumab,0.1
`

func writeInputs(t *testing.T) (graph, rules string) {
	t.Helper()
	dir := t.TempDir()
	graph = filepath.Join(dir, "kg.nt")
	rules = filepath.Join(dir, "rules.csv")
	require.NoError(t, os.WriteFile(graph, []byte(testGraph), 0644))
	require.NoError(t, os.WriteFile(rules, []byte(testRules), 0644))
	return graph, rules
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(zap.NewNop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluate(t *testing.T) {
	graph, rules := writeInputs(t)

	for _, tc := range []struct {
		backend string
		mode    string
		want    []string
	}{
		{"memory", "raw", []string{"0.5", "1"}},
		{"mangle", "raw", []string{"0.5", "1"}},
		{"memory", "normalized", []string{"0.5", "0.5"}},
	} {
		t.Run(tc.backend+"/"+tc.mode, func(t *testing.T) {
			out, err := run(t, "evaluate", "--graph", graph, "--rules", rules, "--backend", tc.backend, "--mode", tc.mode)
			require.NoError(t, err)

			rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, []string{"Body", "Head", "PCA_Confidence", "PCA_valid", "PCA_invalid", "Error"}, rows[0])
			assert.Equal(t, tc.want, rows[1][3:5])
			assert.Equal(t, []string{"", ""}, rows[2][3:5])
			assert.Contains(t, rows[2][5], "Relapse")
		})
	}
}

func TestImportThenEvaluateFromDatabase(t *testing.T) {
	graph, rules := writeInputs(t)
	db := filepath.Join(t.TempDir(), "kg.db")

	out, err := run(t, "import", "--graph", graph, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "facts: 12")
	assert.Contains(t, out, "valid: 2")
	assert.Contains(t, out, "invalid: 1")

	report := filepath.Join(t.TempDir(), "report.csv")
	metrics := filepath.Join(t.TempDir(), "metrics.prom")
	_, err = run(t, "evaluate", "--db", db, "--rules", rules, "--output", report, "--metrics-file", metrics)
	require.NoError(t, err)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "?a patientDrug Nivolumab,0.66,0.5,1,")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pca_rules_total{result="ok"} 1`)
}

func TestEvaluateRequiresInputs(t *testing.T) {
	_, err := run(t, "evaluate")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, rules := writeInputs(t)
	_, err = run(t, "evaluate", "--rules", rules)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	graph, _ := writeInputs(t)
	_, err = run(t, "evaluate", "--graph", graph, "--rules", rules, "--mode", "both")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestEvaluateMissingDatabase(t *testing.T) {
	_, rules := writeInputs(t)
	missing := filepath.Join(t.TempDir(), "absent.db")

	_, err := run(t, "evaluate", "--db", missing, "--rules", rules)
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pca-metrics dev\n", out)
}
