package gate

import (
	"time"

	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

type Category string

const (
	CategoryDrift          Category = "drift"
	CategoryPerformance    Category = "performance"
	CategoryFairness       Category = "fairness"
	CategoryExplainability Category = "explainability"
)

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{CategoryDrift, CategoryPerformance, CategoryFairness, CategoryExplainability}
}

type CategoryVerdict struct {
	Category Category `json:"category"`
	Passed   bool     `json:"passed"`
	Reasons  []string `json:"reasons"`
	Evidence Evidence `json:"evidence"`
}

// Evidence carries the records that drove a verdict. Only the fields of the
// verdict's own category are populated.
type Evidence struct {
	Drift           []schemasignals.DriftMetric           `json:"drift,omitempty"`
	FlaggedFeatures []string                              `json:"flagged_features,omitempty"`
	Performance     *schemasignals.PerformanceMetric      `json:"performance,omitempty"`
	Fairness        []schemasignals.FairnessMetric        `json:"fairness,omitempty"`
	MaxAbsDisparity *float64                              `json:"max_abs_disparity,omitempty"`
	FlaggedGroups   []string                              `json:"flagged_groups,omitempty"`
	Explainability  *schemasignals.ExplainabilityArtifact `json:"explainability,omitempty"`
}

type DecisionReport struct {
	SchemaID         string                       `json:"schema_id"`
	SchemaVersion    string                       `json:"schema_version"`
	ProducerVersion  string                       `json:"producer_version"`
	OverallPassed    bool                         `json:"overall_passed"`
	FailedCategories []Category                   `json:"failed_categories"`
	CategoryVerdicts map[Category]CategoryVerdict `json:"category_verdicts"`
	GeneratedAt      time.Time                    `json:"generated_at"`
	PolicySnapshot   schemapolicy.Document        `json:"policy_snapshot"`
	PolicyDigest     string                       `json:"policy_digest"`
	SignalsDigest    string                       `json:"signals_digest"`
}

type Signature struct {
	Alg          string `json:"alg"`
	KeyID        string `json:"key_id"`
	Sig          string `json:"sig"`
	SignedDigest string `json:"signed_digest,omitempty"`
}

// SignedReport is the detached signature envelope written next to a report.
type SignedReport struct {
	SchemaID     string    `json:"schema_id"`
	ReportDigest string    `json:"report_digest"`
	Signature    Signature `json:"signature"`
}
