package gate

import (
	"encoding/json"
	"fmt"
	"time"

	gatejcs "github.com/davidahmann/modelgate/core/jcs"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	"github.com/davidahmann/modelgate/core/schema/validate"
)

// ReportDigest is the canonical sha256 of a report with generated_at cleared, so
// two evaluations of the same inputs share a digest.
func ReportDigest(report schemagate.DecisionReport) (string, error) {
	report.GeneratedAt = time.Time{}
	digest, err := gatejcs.DigestValue(report)
	if err != nil {
		return "", fmt.Errorf("digest report: %w", err)
	}
	return digest, nil
}

// EncodeReport renders the archival JSON form and checks it against the report schema.
func EncodeReport(report schemagate.DecisionReport) ([]byte, error) {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := validate.ValidateDecisionReport(encoded); err != nil {
		return nil, fmt.Errorf("encoded report: %w", err)
	}
	return append(encoded, '\n'), nil
}

func DecodeReport(data []byte) (schemagate.DecisionReport, error) {
	if err := validate.ValidateDecisionReport(data); err != nil {
		return schemagate.DecisionReport{}, fmt.Errorf("decision report: %w", err)
	}
	var report schemagate.DecisionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return schemagate.DecisionReport{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
