package policy

import schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"

type Document struct {
	SchemaID       string                    `json:"schema_id"`
	SchemaVersion  string                    `json:"schema_version"`
	Metadata       Metadata                  `json:"metadata,omitzero"`
	Drift          DriftThresholds           `json:"drift"`
	Performance    PerformanceThresholds     `json:"performance"`
	Fairness       FairnessThresholds        `json:"fairness"`
	Explainability ExplainabilityRequirement `json:"explainability"`
}

type Metadata struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

// DriftThresholds are inclusive-fail: a value equal to the threshold is flagged.
type DriftThresholds struct {
	PSIFail float64 `json:"psi_fail"`
	KSFail  float64 `json:"ks_fail"`
}

type PerformanceThresholds struct {
	MinAUROC   float64                        `json:"min_auroc"`
	MinAUPRC   schemacommon.Optional[float64] `json:"min_auprc,omitzero"`
	MaxLogLoss schemacommon.Optional[float64] `json:"max_log_loss,omitzero"`
}

// FairnessThresholds are inclusive-pass: a disparity equal to the gap passes.
type FairnessThresholds struct {
	ParityGapFail float64 `json:"parity_gap_fail"`
}

type ExplainabilityRequirement struct {
	RequireSHAPArtifact bool `json:"require_shap_artifact"`
	TopFeaturesMin      int  `json:"top_features_min"`
}
