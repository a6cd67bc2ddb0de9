package gate

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

func basePolicy() schemapolicy.Document {
	return schemapolicy.Document{
		Metadata: schemapolicy.Metadata{Name: "release-gate"},
		Drift:    schemapolicy.DriftThresholds{PSIFail: 0.2, KSFail: 0.1},
		Performance: schemapolicy.PerformanceThresholds{
			MinAUROC:   0.8,
			MaxLogLoss: schemacommon.Some(0.7),
		},
		Fairness:       schemapolicy.FairnessThresholds{ParityGapFail: 0.05},
		Explainability: schemapolicy.ExplainabilityRequirement{RequireSHAPArtifact: true, TopFeaturesMin: 10},
	}
}

func passingBundle() schemasignals.Bundle {
	return schemasignals.Bundle{
		Drift: []schemasignals.DriftMetric{
			{Feature: "age", PSI: 0.03, KSStat: 0.02, KSPValue: 0.81},
			{Feature: "lactate", PSI: 0.11, KSStat: 0.06, KSPValue: 0.12},
		},
		Performance: &schemasignals.PerformanceMetric{
			AUROC:   schemacommon.Some(0.85),
			AUPRC:   schemacommon.Some(0.41),
			LogLoss: schemacommon.Some(0.52),
		},
		Fairness: []schemasignals.FairnessMetric{
			{Group: "F", N: 120, PositiveRate: 0.31, Disparity: -0.0202},
			{Group: "M", N: 118, PositiveRate: 0.35, Disparity: 0.0145},
		},
		Explainability: &schemasignals.ExplainabilityArtifact{ArtifactPresent: true, TopFeaturesCount: 12},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluatePassingGate(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	report, err := Evaluate(basePolicy(), passingBundle(), EvalOptions{ProducerVersion: "1.2.3", Now: fixedClock(now)})
	require.NoError(t, err)

	assert.True(t, report.OverallPassed)
	assert.Empty(t, report.FailedCategories)
	assert.Equal(t, ReportSchemaID, report.SchemaID)
	assert.Equal(t, ReportSchemaV1, report.SchemaVersion)
	assert.Equal(t, "1.2.3", report.ProducerVersion)
	assert.Equal(t, now.UTC(), report.GeneratedAt)
	assert.Equal(t, "modelgate.policy", report.PolicySnapshot.SchemaID)
	assert.Equal(t, "release-gate", report.PolicySnapshot.Metadata.Name)
	assert.Len(t, report.PolicyDigest, 64)
	assert.Len(t, report.SignalsDigest, 64)
	require.Len(t, report.CategoryVerdicts, 4)
	for _, category := range schemagate.Categories() {
		verdict := report.CategoryVerdicts[category]
		assert.Equal(t, category, verdict.Category)
		assert.True(t, verdict.Passed, category)
		assert.Empty(t, verdict.Reasons, category)
	}
}

func TestEvaluateAnySingleFailureFailsGate(t *testing.T) {
	tests := []struct {
		category schemagate.Category
		mutate   func(*schemasignals.Bundle)
	}{
		{schemagate.CategoryDrift, func(bundle *schemasignals.Bundle) { bundle.Drift[1].PSI = 0.2 }},
		{schemagate.CategoryPerformance, func(bundle *schemasignals.Bundle) { bundle.Performance = nil }},
		{schemagate.CategoryFairness, func(bundle *schemasignals.Bundle) { bundle.Fairness[0].Disparity = -0.0501 }},
		{schemagate.CategoryExplainability, func(bundle *schemasignals.Bundle) { bundle.Explainability.TopFeaturesCount = 9 }},
	}
	for _, test := range tests {
		t.Run(string(test.category), func(t *testing.T) {
			bundle := passingBundle()
			test.mutate(&bundle)
			report, err := Evaluate(basePolicy(), bundle, EvalOptions{})
			require.NoError(t, err)
			assert.False(t, report.OverallPassed)
			assert.Equal(t, []schemagate.Category{test.category}, report.FailedCategories)
			for _, category := range schemagate.Categories() {
				assert.Equal(t, category != test.category, report.CategoryVerdicts[category].Passed, category)
			}
			assert.NotEmpty(t, report.CategoryVerdicts[test.category].Reasons)
		})
	}
}

func TestEvaluateMalformedPolicyIsConfigError(t *testing.T) {
	document := basePolicy()
	document.Drift.PSIFail = -0.2
	var states []State
	report, err := Evaluate(document, passingBundle(), EvalOptions{OnTransition: func(state State) { states = append(states, state) }})
	require.Error(t, err)
	assert.True(t, coreerrors.IsConfig(err))
	assert.Equal(t, "drift.psi_fail", coreerrors.FieldOf(err))
	assert.Equal(t, schemagate.DecisionReport{}, report)
	assert.Equal(t, []State{StatePending}, states, "no category runs on a config_error")
}

func TestEvaluateDuplicateFeatureIsInputError(t *testing.T) {
	bundle := passingBundle()
	bundle.Drift = append(bundle.Drift, schemasignals.DriftMetric{Feature: "age", PSI: 0.01, KSStat: 0.01, KSPValue: 0.9})
	report, err := Evaluate(basePolicy(), bundle, EvalOptions{})
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
	assert.Equal(t, "drift[2].feature", coreerrors.FieldOf(err))
	assert.Equal(t, schemagate.DecisionReport{}, report)
}

func TestEvaluatePositiveRateOutOfRangeIsInputError(t *testing.T) {
	bundle := passingBundle()
	bundle.Fairness[1].PositiveRate = 1.4
	_, err := Evaluate(basePolicy(), bundle, EvalOptions{})
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
	assert.Equal(t, "fairness[1].positive_rate", coreerrors.FieldOf(err))
}

func TestEvaluateNaNDriftFailsSafe(t *testing.T) {
	bundle := passingBundle()
	bundle.Drift[0].KSPValue = math.NaN()
	report, err := Evaluate(basePolicy(), bundle, EvalOptions{})
	require.NoError(t, err, "NaN drift is a flag, not an error")
	assert.False(t, report.OverallPassed)
	assert.Equal(t, []string{"non-numeric metric for feature age"}, report.CategoryVerdicts[schemagate.CategoryDrift].Reasons)

	_, err = EncodeReport(report)
	require.NoError(t, err, "NaN evidence must still encode")
}

func TestEvaluateInfiniteSignals(t *testing.T) {
	bundle := passingBundle()
	bundle.Drift[1].PSI = math.Inf(1)
	report, err := Evaluate(basePolicy(), bundle, EvalOptions{})
	require.NoError(t, err)
	assert.False(t, report.OverallPassed)
	assert.Equal(t, []string{"non-numeric metric for feature lactate"}, report.CategoryVerdicts[schemagate.CategoryDrift].Reasons)
	_, err = EncodeReport(report)
	require.NoError(t, err)
	_, err = ReportDigest(report)
	require.NoError(t, err)

	bundle = passingBundle()
	bundle.Fairness[0].Disparity = math.Inf(-1)
	_, err = Evaluate(basePolicy(), bundle, EvalOptions{})
	require.Error(t, err)
	assert.True(t, coreerrors.IsInput(err))
	assert.Equal(t, "fairness[0].disparity", coreerrors.FieldOf(err))
}

func TestEvaluateStateTransitions(t *testing.T) {
	var states []State
	_, err := Evaluate(basePolicy(), passingBundle(), EvalOptions{OnTransition: func(state State) { states = append(states, state) }})
	require.NoError(t, err)
	assert.Equal(t, []State{StatePending, StateEvaluating, StateDecided}, states)
}

func TestEvaluateIdempotentExceptTimestamp(t *testing.T) {
	first, err := Evaluate(basePolicy(), failingBundle(), EvalOptions{Now: fixedClock(time.Unix(100, 0))})
	require.NoError(t, err)
	second, err := Evaluate(basePolicy(), failingBundle(), EvalOptions{Now: fixedClock(time.Unix(200, 0))})
	require.NoError(t, err)

	firstDigest, err := ReportDigest(first)
	require.NoError(t, err)
	secondDigest, err := ReportDigest(second)
	require.NoError(t, err)
	assert.Equal(t, firstDigest, secondDigest)

	first.GeneratedAt = time.Time{}
	second.GeneratedAt = time.Time{}
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(firstJSON, secondJSON))
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	clock := fixedClock(time.Unix(1700000000, 0))
	for range 20 {
		parallel, err := Evaluate(basePolicy(), failingBundle(), EvalOptions{Now: clock})
		require.NoError(t, err)
		sequential, err := Evaluate(basePolicy(), failingBundle(), EvalOptions{Now: clock, Sequential: true})
		require.NoError(t, err)
		parallelJSON, err := EncodeReport(parallel)
		require.NoError(t, err)
		sequentialJSON, err := EncodeReport(sequential)
		require.NoError(t, err)
		assert.Equal(t, string(sequentialJSON), string(parallelJSON))
	}
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	bundle := failingBundle()
	before, err := json.Marshal(bundle)
	require.NoError(t, err)
	_, err = Evaluate(basePolicy(), bundle, EvalOptions{})
	require.NoError(t, err)
	after, err := json.Marshal(bundle)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestEncodeDecodeReport(t *testing.T) {
	report, err := Evaluate(basePolicy(), failingBundle(), EvalOptions{ProducerVersion: "test", Now: fixedClock(time.Unix(1700000000, 0))})
	require.NoError(t, err)

	encoded, err := EncodeReport(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(encoded, []byte("}\n")))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(encoded, &generic))
	assert.Equal(t, false, generic["overall_passed"])
	snapshot := generic["policy_snapshot"].(map[string]any)
	performance := snapshot["performance"].(map[string]any)
	assert.NotContains(t, performance, "min_auprc", "absent optional thresholds are omitted")
	assert.Equal(t, 0.7, performance["max_log_loss"])

	decoded, err := DecodeReport(encoded)
	require.NoError(t, err)
	originalDigest, err := ReportDigest(report)
	require.NoError(t, err)
	decodedDigest, err := ReportDigest(decoded)
	require.NoError(t, err)
	assert.Equal(t, originalDigest, decodedDigest)

	_, err = DecodeReport([]byte(`{"overall_passed": true}`))
	assert.Error(t, err)
}

func failingBundle() schemasignals.Bundle {
	bundle := passingBundle()
	bundle.Drift = append(bundle.Drift,
		schemasignals.DriftMetric{Feature: "creatinine", PSI: 0.31, KSStat: 0.14, KSPValue: 0.001},
		schemasignals.DriftMetric{Feature: "sodium", PSI: math.NaN(), KSStat: 0.02, KSPValue: 0.4},
	)
	bundle.Fairness = append(bundle.Fairness, schemasignals.FairnessMetric{Group: "U", N: 12, PositiveRate: 0.5, Disparity: 0.09})
	bundle.Explainability = &schemasignals.ExplainabilityArtifact{}
	return bundle
}
