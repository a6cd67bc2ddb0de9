package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
)

func TestLintStrictPolicyPasses(t *testing.T) {
	result, err := Lint(validDocument())
	require.NoError(t, err)
	assert.Equal(t, LintStatusPass, result.Status)
	assert.Empty(t, result.Warnings)
	assert.Len(t, result.PolicyDigest, 64)
}

func TestLintLenientPolicyWarns(t *testing.T) {
	document := validDocument()
	document.Drift.PSIFail = 0.6
	document.Drift.KSFail = 0
	document.Performance.MinAUROC = 0.55
	document.Fairness.ParityGapFail = 0.3
	document.Explainability.RequireSHAPArtifact = false

	result, err := Lint(document)
	require.NoError(t, err)
	assert.Equal(t, LintStatusWarn, result.Status)
	assert.Equal(t, []string{
		"drift.ks_fail=0 is outside the expected range (0, 1]",
		"drift.psi_fail=0.6 is above 0.5 and unusually lenient",
		"performance.min_auroc=0.55 is below 0.6",
		"fairness.parity_gap_fail=0.3 is above 0.2 and allows large disparities",
		"explainability.require_shap_artifact is false",
	}, result.Warnings)
}

func TestLintRejectsInvalidPolicy(t *testing.T) {
	document := validDocument()
	document.Drift.KSFail = -1
	_, err := Lint(document)
	require.Error(t, err)
	assert.True(t, coreerrors.IsConfig(err))
}
