package signals

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

func TestParseDriftCSV(t *testing.T) {
	metrics, err := ParseDriftCSV(strings.NewReader("\ufeffFeature,PSI,ks,ks_pvalue,extra\nage,0.01,0.03,0.91,x\nbmi, NaN ,0.4,,y\nhr,oops,0.1,0.2,z\n"))
	require.NoError(t, err)
	require.Len(t, metrics, 3)

	assert.Equal(t, "age", metrics[0].Feature)
	assert.Equal(t, 0.01, metrics[0].PSI)
	assert.Equal(t, 0.03, metrics[0].KSStat)
	assert.Equal(t, 0.91, metrics[0].KSPValue)

	assert.True(t, math.IsNaN(metrics[1].PSI))
	assert.Equal(t, 0.4, metrics[1].KSStat)
	assert.True(t, math.IsNaN(metrics[1].KSPValue), "empty cells read as NaN")
	assert.True(t, math.IsNaN(metrics[2].PSI), "non-numeric cells read as NaN")
}

func TestParseDriftCSVInfiniteCellsReadAsNaN(t *testing.T) {
	metrics, err := ParseDriftCSV(strings.NewReader("feature,psi,ks_stat,ks_pvalue\nage,inf,0.1,0.2\nbmi,0.01,-Inf,+Infinity\n"))
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.True(t, math.IsNaN(metrics[0].PSI))
	assert.Equal(t, 0.1, metrics[0].KSStat)
	assert.True(t, math.IsNaN(metrics[1].KSStat))
	assert.True(t, math.IsNaN(metrics[1].KSPValue))
	require.NoError(t, Validate(schemasignals.Bundle{Drift: metrics}))
}

func TestParseDriftCSVMissingColumn(t *testing.T) {
	_, err := ParseDriftCSV(strings.NewReader("feature,psi,ks_pvalue\nage,0.1,0.5\n"))
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
	assert.Equal(t, "drift.ks_stat", coreerrors.FieldOf(err))

	_, err = ParseDriftCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
}

func TestParseFairnessCSV(t *testing.T) {
	metrics, err := ParseFairnessCSV(strings.NewReader("group,n,positive_rate,parity_gap\nF,120,0.31,-0.0202\nM,118,0.35,+0.0145\nX,4,0.5,\n"))
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, schemasignals.FairnessMetric{Group: "F", N: 120, PositiveRate: 0.31, Disparity: -0.0202}, metrics[0])
	assert.Equal(t, 0.0145, metrics[1].Disparity)
	assert.True(t, math.IsNaN(metrics[2].Disparity))

	_, err = ParseFairnessCSV(strings.NewReader("group,n,positive_rate,disparity\nF,many,0.31,0.01\n"))
	require.Error(t, err)
	assert.Equal(t, "fairness[0].n", coreerrors.FieldOf(err))

	_, err = ParseFairnessCSV(strings.NewReader("group,n,positive_rate,disparity\nF,10,high,0.01\n"))
	require.Error(t, err)
	assert.Equal(t, "fairness[0].positive_rate", coreerrors.FieldOf(err))

	for _, cell := range []string{"inf", "-Inf", "+Infinity"} {
		_, err = ParseFairnessCSV(strings.NewReader("group,n,positive_rate,disparity\nF,10,0.3,0.01\nM,10,0.3," + cell + "\n"))
		require.Error(t, err, cell)
		assert.True(t, coreerrors.IsInput(err))
		assert.Equal(t, "fairness[1].disparity", coreerrors.FieldOf(err))
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	files := Files{
		Drift:          writeFile(t, dir, "drift.csv", "feature,psi,ks_stat,ks_pvalue\nage,0.01,0.03,0.91\n"),
		Performance:    writeFile(t, dir, "performance.json", `{"auroc": 0.85, "log_loss": null}`),
		Fairness:       writeFile(t, dir, "fairness.csv", "group,n,positive_rate,disparity\nF,120,0.31,-0.0202\n"),
		Explainability: writeFile(t, dir, "explainability.json", `{"artifact_present": true, "top_features_count": 12}`),
	}
	bundle, err := LoadFiles(files)
	require.NoError(t, err)
	require.Len(t, bundle.Drift, 1)
	require.NotNil(t, bundle.Performance)
	auroc, ok := bundle.Performance.AUROC.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.85, auroc)
	assert.False(t, bundle.Performance.LogLoss.Present())
	assert.False(t, bundle.Performance.AUPRC.Present())
	require.Len(t, bundle.Fairness, 1)
	require.NotNil(t, bundle.Explainability)
	assert.Equal(t, 12, bundle.Explainability.TopFeaturesCount)

	empty, err := LoadFiles(Files{})
	require.NoError(t, err)
	assert.Nil(t, empty.Performance)
	assert.NotNil(t, empty.Drift)

	_, err = LoadFiles(Files{Drift: filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.Equal(t, "signals_unreadable", coreerrors.CodeOf(err))
}

func TestLoadBundleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bundle.json", `{
  "drift": [{"feature": "age", "psi": null, "ks_stat": 0.02, "ks_pvalue": 0.8}],
  "fairness": [{"group": "F", "n": 120, "positive_rate": 0.31, "disparity": -0.0202}]
}`)
	bundle, err := LoadBundleFile(path)
	require.NoError(t, err)
	require.Len(t, bundle.Drift, 1)
	assert.True(t, math.IsNaN(bundle.Drift[0].PSI), "null drift values decode as NaN")
	assert.Nil(t, bundle.Performance)
	assert.Nil(t, bundle.Explainability)

	invalid := writeFile(t, dir, "invalid.json", `{"drift": [{"feature": "age"}]}`)
	_, err = LoadBundleFile(invalid)
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
	assert.Equal(t, "signals_schema_invalid", coreerrors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	valid := schemasignals.Bundle{
		Drift: []schemasignals.DriftMetric{
			{Feature: "age", PSI: 0.01, KSStat: 0.02, KSPValue: 0.9},
			{Feature: "bmi", PSI: math.NaN(), KSStat: math.NaN(), KSPValue: math.NaN()},
		},
		Performance: &schemasignals.PerformanceMetric{AUROC: schemacommon.Some(0.85)},
		Fairness: []schemasignals.FairnessMetric{
			{Group: "F", N: 120, PositiveRate: 0.31, Disparity: math.NaN()},
		},
		Explainability: &schemasignals.ExplainabilityArtifact{ArtifactPresent: true, TopFeaturesCount: 3},
	}
	require.NoError(t, Validate(valid))
	require.NoError(t, Validate(schemasignals.Bundle{}))

	tests := []struct {
		name   string
		mutate func(*schemasignals.Bundle)
		field  string
	}{
		{
			name: "duplicate_feature",
			mutate: func(bundle *schemasignals.Bundle) {
				bundle.Drift = append(bundle.Drift, schemasignals.DriftMetric{Feature: " age ", PSI: 0.1, KSStat: 0.1, KSPValue: 0.5})
			},
			field: "drift[2].feature",
		},
		{
			name:   "empty_feature",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Drift[0].Feature = " " },
			field:  "drift[0].feature",
		},
		{
			name:   "negative_psi",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Drift[0].PSI = -0.01 },
			field:  "drift[0].psi",
		},
		{
			name:   "ks_stat_above_one",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Drift[0].KSStat = 1.2 },
			field:  "drift[0].ks_stat",
		},
		{
			name:   "auroc_out_of_range",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Performance.AUROC = schemacommon.Some(1.5) },
			field:  "performance.auroc",
		},
		{
			name:   "negative_log_loss",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Performance.LogLoss = schemacommon.Some(-0.2) },
			field:  "performance.log_loss",
		},
		{
			name: "duplicate_group",
			mutate: func(bundle *schemasignals.Bundle) {
				bundle.Fairness = append(bundle.Fairness, schemasignals.FairnessMetric{Group: "F", N: 3, PositiveRate: 0.1})
			},
			field: "fairness[1].group",
		},
		{
			name:   "negative_n",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Fairness[0].N = -1 },
			field:  "fairness[0].n",
		},
		{
			name:   "positive_rate_above_one",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Fairness[0].PositiveRate = 1.01 },
			field:  "fairness[0].positive_rate",
		},
		{
			name:   "positive_rate_nan",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Fairness[0].PositiveRate = math.NaN() },
			field:  "fairness[0].positive_rate",
		},
		{
			name:   "infinite_disparity",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Fairness[0].Disparity = math.Inf(1) },
			field:  "fairness[0].disparity",
		},
		{
			name:   "negative_infinite_disparity",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Fairness[0].Disparity = math.Inf(-1) },
			field:  "fairness[0].disparity",
		},
		{
			name:   "negative_top_features_count",
			mutate: func(bundle *schemasignals.Bundle) { bundle.Explainability.TopFeaturesCount = -1 },
			field:  "explainability.top_features_count",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bundle := cloneBundle(valid)
			test.mutate(&bundle)
			err := Validate(bundle)
			require.Error(t, err)
			assert.True(t, coreerrors.IsInput(err))
			assert.Equal(t, test.field, coreerrors.FieldOf(err))
		})
	}
}

func TestDigestIgnoresNilVersusEmpty(t *testing.T) {
	withNil, err := Digest(schemasignals.Bundle{})
	require.NoError(t, err)
	withEmpty, err := Digest(schemasignals.Bundle{Drift: []schemasignals.DriftMetric{}, Fairness: []schemasignals.FairnessMetric{}})
	require.NoError(t, err)
	assert.Equal(t, withNil, withEmpty)

	withNaN, err := Digest(schemasignals.Bundle{Drift: []schemasignals.DriftMetric{{Feature: "age", PSI: math.NaN()}}})
	require.NoError(t, err, "NaN drift values serialize as null")
	assert.NotEqual(t, withNil, withNaN)
}

func cloneBundle(bundle schemasignals.Bundle) schemasignals.Bundle {
	out := bundle
	out.Drift = append([]schemasignals.DriftMetric(nil), bundle.Drift...)
	out.Fairness = append([]schemasignals.FairnessMetric(nil), bundle.Fairness...)
	if bundle.Performance != nil {
		performance := *bundle.Performance
		out.Performance = &performance
	}
	if bundle.Explainability != nil {
		explainability := *bundle.Explainability
		out.Explainability = &explainability
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
