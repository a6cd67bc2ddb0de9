package signals

import (
	"encoding/json"

	schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"
)

// DriftMetric is one row of the drift table. Non-finite values serialize as null
// and null decodes back to NaN.
type DriftMetric struct {
	Feature  string
	PSI      float64
	KSStat   float64
	KSPValue float64
}

type driftMetricJSON struct {
	Feature  string   `json:"feature"`
	PSI      *float64 `json:"psi"`
	KSStat   *float64 `json:"ks_stat"`
	KSPValue *float64 `json:"ks_pvalue"`
}

func (m DriftMetric) MarshalJSON() ([]byte, error) {
	return json.Marshal(driftMetricJSON{
		Feature:  m.Feature,
		PSI:      schemacommon.FiniteOrNil(m.PSI),
		KSStat:   schemacommon.FiniteOrNil(m.KSStat),
		KSPValue: schemacommon.FiniteOrNil(m.KSPValue),
	})
}

func (m *DriftMetric) UnmarshalJSON(data []byte) error {
	var raw driftMetricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = DriftMetric{
		Feature:  raw.Feature,
		PSI:      schemacommon.NaNIfNil(raw.PSI),
		KSStat:   schemacommon.NaNIfNil(raw.KSStat),
		KSPValue: schemacommon.NaNIfNil(raw.KSPValue),
	}
	return nil
}

type PerformanceMetric struct {
	AUROC   schemacommon.Optional[float64] `json:"auroc,omitzero"`
	AUPRC   schemacommon.Optional[float64] `json:"auprc,omitzero"`
	LogLoss schemacommon.Optional[float64] `json:"log_loss,omitzero"`
}

// FairnessMetric is one row of the fairness table. Disparity is signed and
// relative to the upstream reference rate.
type FairnessMetric struct {
	Group        string
	N            int
	PositiveRate float64
	Disparity    float64
}

type fairnessMetricJSON struct {
	Group        string   `json:"group"`
	N            int      `json:"n"`
	PositiveRate *float64 `json:"positive_rate"`
	Disparity    *float64 `json:"disparity"`
}

func (m FairnessMetric) MarshalJSON() ([]byte, error) {
	return json.Marshal(fairnessMetricJSON{
		Group:        m.Group,
		N:            m.N,
		PositiveRate: schemacommon.FiniteOrNil(m.PositiveRate),
		Disparity:    schemacommon.FiniteOrNil(m.Disparity),
	})
}

func (m *FairnessMetric) UnmarshalJSON(data []byte) error {
	var raw fairnessMetricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = FairnessMetric{
		Group:        raw.Group,
		N:            raw.N,
		PositiveRate: schemacommon.NaNIfNil(raw.PositiveRate),
		Disparity:    schemacommon.NaNIfNil(raw.Disparity),
	}
	return nil
}

type ExplainabilityArtifact struct {
	ArtifactPresent  bool `json:"artifact_present"`
	TopFeaturesCount int  `json:"top_features_count"`
}

// Bundle is the full signal set for one candidate model. A nil Performance
// means the record was never produced; a nil Explainability reads as no artifact.
type Bundle struct {
	Drift          []DriftMetric           `json:"drift"`
	Performance    *PerformanceMetric      `json:"performance,omitempty"`
	Fairness       []FairnessMetric        `json:"fairness"`
	Explainability *ExplainabilityArtifact `json:"explainability,omitempty"`
}
