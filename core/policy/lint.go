package policy

import (
	"fmt"

	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
)

const (
	LintStatusPass = "pass"
	LintStatusWarn = "warn"
)

type LintResult struct {
	Status       string   `json:"status"`
	PolicyDigest string   `json:"policy_digest"`
	Warnings     []string `json:"warnings"`
}

// Lint flags thresholds that parse cleanly but are unusually lenient for a
// release gate. Warnings never change the gate's decision.
func Lint(document schemapolicy.Document) (LintResult, error) {
	normalized, err := Normalize(document)
	if err != nil {
		return LintResult{}, err
	}
	digest, err := PolicyDigest(normalized)
	if err != nil {
		return LintResult{}, err
	}

	warnings := []string{}
	unitRange := []thresholdField{
		{"drift.psi_fail", normalized.Drift.PSIFail},
		{"drift.ks_fail", normalized.Drift.KSFail},
		{"fairness.parity_gap_fail", normalized.Fairness.ParityGapFail},
	}
	for _, threshold := range unitRange {
		if threshold.value <= 0 || threshold.value > 1 {
			warnings = append(warnings, fmt.Sprintf("%s=%v is outside the expected range (0, 1]", threshold.field, threshold.value))
		}
	}
	if normalized.Drift.PSIFail > 0.5 {
		warnings = append(warnings, fmt.Sprintf("drift.psi_fail=%v is above 0.5 and unusually lenient", normalized.Drift.PSIFail))
	}
	if normalized.Drift.KSFail > 0.5 {
		warnings = append(warnings, fmt.Sprintf("drift.ks_fail=%v is above 0.5 and unusually lenient", normalized.Drift.KSFail))
	}
	if normalized.Performance.MinAUROC < 0.6 {
		warnings = append(warnings, fmt.Sprintf("performance.min_auroc=%v is below 0.6", normalized.Performance.MinAUROC))
	}
	if normalized.Fairness.ParityGapFail > 0.2 {
		warnings = append(warnings, fmt.Sprintf("fairness.parity_gap_fail=%v is above 0.2 and allows large disparities", normalized.Fairness.ParityGapFail))
	}
	if !normalized.Explainability.RequireSHAPArtifact {
		warnings = append(warnings, "explainability.require_shap_artifact is false")
	}

	status := LintStatusPass
	if len(warnings) > 0 {
		status = LintStatusWarn
	}
	return LintResult{Status: status, PolicyDigest: digest, Warnings: warnings}, nil
}
