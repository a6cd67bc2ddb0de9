package policy

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	gatejcs "github.com/davidahmann/modelgate/core/jcs"
	schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
)

const (
	SchemaID = "modelgate.policy"
	SchemaV1 = "1.0.0"
)

func LoadPolicyFile(path string) (schemapolicy.Document, error) {
	// #nosec G304 -- policy path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return schemapolicy.Document{}, coreerrors.Wrap(
			fmt.Errorf("read policy: %w", err),
			coreerrors.CategoryConfig,
			"policy_unreadable",
			"check the --policy path",
			false,
		)
	}
	return ParsePolicyYAML(content)
}

// ParsePolicyYAML decodes a policy document. Required fields are checked by
// dotted path so a config_error always names the field it rejects.
func ParsePolicyYAML(data []byte) (schemapolicy.Document, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return schemapolicy.Document{}, coreerrors.Wrap(
			fmt.Errorf("parse policy yaml: %w", err),
			coreerrors.CategoryConfig,
			"policy_unparsable",
			"the policy must be a YAML mapping with drift, performance, fairness and explainability sections",
			false,
		)
	}

	reader := &fieldReader{root: root}
	document := schemapolicy.Document{
		SchemaID:      reader.optionalString("schema_id"),
		SchemaVersion: reader.optionalString("schema_version"),
		Metadata: schemapolicy.Metadata{
			Name:    reader.optionalString("metadata.name"),
			Version: reader.optionalString("metadata.version"),
			Owner:   reader.optionalString("metadata.owner"),
		},
		Drift: schemapolicy.DriftThresholds{
			PSIFail: reader.requiredNumber("drift.psi_fail"),
			KSFail:  reader.requiredNumber("drift.ks_fail"),
		},
		Performance: schemapolicy.PerformanceThresholds{
			MinAUROC:   reader.requiredNumber("performance.min_auroc"),
			MinAUPRC:   reader.optionalNumber("performance.min_auprc"),
			MaxLogLoss: reader.optionalNumber("performance.max_log_loss"),
		},
		Fairness: schemapolicy.FairnessThresholds{
			ParityGapFail: reader.requiredNumber("fairness.parity_gap_fail"),
		},
		Explainability: schemapolicy.ExplainabilityRequirement{
			RequireSHAPArtifact: reader.requiredBool("explainability.require_shap_artifact"),
			TopFeaturesMin:      reader.requiredInt("explainability.top_features_min"),
		},
	}
	if reader.err != nil {
		return schemapolicy.Document{}, reader.err
	}
	return Normalize(document)
}

// Normalize fills schema defaults and rejects out-of-domain values. The gate
// calls it on every evaluation so programmatically built documents get the same checks.
func Normalize(input schemapolicy.Document) (schemapolicy.Document, error) {
	output := input
	output.SchemaID = strings.TrimSpace(output.SchemaID)
	if output.SchemaID == "" {
		output.SchemaID = SchemaID
	}
	if output.SchemaID != SchemaID {
		return schemapolicy.Document{}, coreerrors.Config("schema_id", "unsupported value %q", output.SchemaID)
	}
	output.SchemaVersion = strings.TrimSpace(output.SchemaVersion)
	if output.SchemaVersion == "" {
		output.SchemaVersion = SchemaV1
	}
	if output.SchemaVersion != SchemaV1 {
		return schemapolicy.Document{}, coreerrors.Config("schema_version", "unsupported value %q", output.SchemaVersion)
	}
	output.Metadata.Name = strings.TrimSpace(output.Metadata.Name)
	output.Metadata.Version = strings.TrimSpace(output.Metadata.Version)
	output.Metadata.Owner = strings.TrimSpace(output.Metadata.Owner)

	thresholds := []thresholdField{
		{"drift.psi_fail", output.Drift.PSIFail},
		{"drift.ks_fail", output.Drift.KSFail},
		{"performance.min_auroc", output.Performance.MinAUROC},
		{"fairness.parity_gap_fail", output.Fairness.ParityGapFail},
	}
	if value, ok := output.Performance.MinAUPRC.Get(); ok {
		thresholds = append(thresholds, thresholdField{"performance.min_auprc", value})
	}
	if value, ok := output.Performance.MaxLogLoss.Get(); ok {
		thresholds = append(thresholds, thresholdField{"performance.max_log_loss", value})
	}
	for _, threshold := range thresholds {
		if err := checkThreshold(threshold.field, threshold.value); err != nil {
			return schemapolicy.Document{}, err
		}
	}
	if output.Explainability.TopFeaturesMin < 0 {
		return schemapolicy.Document{}, coreerrors.Config(
			"explainability.top_features_min",
			"must be non-negative, got %d",
			output.Explainability.TopFeaturesMin,
		)
	}
	return output, nil
}

func PolicyDigest(document schemapolicy.Document) (string, error) {
	normalized, err := Normalize(document)
	if err != nil {
		return "", err
	}
	digest, err := gatejcs.DigestValue(normalized)
	if err != nil {
		return "", fmt.Errorf("digest policy: %w", err)
	}
	return digest, nil
}

type thresholdField struct {
	field string
	value float64
}

func checkThreshold(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return coreerrors.Config(field, "must be a finite number")
	}
	if value < 0 {
		return coreerrors.Config(field, "must be non-negative, got %v", value)
	}
	return nil
}

// fieldReader walks a decoded YAML tree and keeps the first error it meets.
type fieldReader struct {
	root map[string]any
	err  error
}

func (r *fieldReader) lookup(path string) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	current := r.root
	for index, part := range parts {
		value, ok := current[part]
		if !ok || value == nil {
			return nil, false
		}
		if index == len(parts)-1 {
			return value, true
		}
		next, ok := asMapping(value)
		if !ok {
			r.err = coreerrors.Config(strings.Join(parts[:index+1], "."), "must be a mapping, got %s", typeName(value))
			return nil, false
		}
		current = next
	}
	return nil, false
}

func (r *fieldReader) requiredNumber(path string) float64 {
	value, ok := r.lookup(path)
	if !ok {
		r.missing(path)
		return 0
	}
	number, ok := asNumber(value)
	if !ok {
		r.wrongType(path, "a number", value)
		return 0
	}
	return number
}

func (r *fieldReader) optionalNumber(path string) schemacommon.Optional[float64] {
	value, ok := r.lookup(path)
	if !ok {
		return schemacommon.None[float64]()
	}
	number, ok := asNumber(value)
	if !ok {
		r.wrongType(path, "a number", value)
		return schemacommon.None[float64]()
	}
	return schemacommon.Some(number)
}

func (r *fieldReader) requiredInt(path string) int {
	value, ok := r.lookup(path)
	if !ok {
		r.missing(path)
		return 0
	}
	integer, ok := asInt(value)
	if !ok {
		r.wrongType(path, "an integer", value)
		return 0
	}
	return integer
}

func (r *fieldReader) requiredBool(path string) bool {
	value, ok := r.lookup(path)
	if !ok {
		r.missing(path)
		return false
	}
	flag, ok := value.(bool)
	if !ok {
		r.wrongType(path, "a boolean", value)
		return false
	}
	return flag
}

func (r *fieldReader) optionalString(path string) string {
	value, ok := r.lookup(path)
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		r.wrongType(path, "a string", value)
		return ""
	}
	return text
}

func (r *fieldReader) missing(path string) {
	if r.err == nil {
		r.err = coreerrors.Config(path, "required field is missing")
	}
}

func (r *fieldReader) wrongType(path, want string, value any) {
	if r.err == nil {
		r.err = coreerrors.Config(path, "must be %s, got %s", want, typeName(value))
	}
}

func asMapping(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[name] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func asNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int8:
		return int(typed), true
	case int16:
		return int(typed), true
	case int32:
		return int(typed), true
	case int64:
		return int(typed), true
	case uint:
		return int(typed), true
	case uint8:
		return int(typed), true
	case uint16:
		return int(typed), true
	case uint32:
		return int(typed), true
	case uint64:
		if typed > math.MaxInt64 {
			return 0, false
		}
		return int(typed), true
	case float64:
		// YAML writes whole numbers such as 10.0 as floats.
		if typed != math.Trunc(typed) || typed < math.MinInt32 || typed > math.MaxInt32 {
			return 0, false
		}
		return int(typed), true
	default:
		return 0, false
	}
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case []any:
		return "sequence"
	case map[string]any, map[any]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", value)
	}
}
