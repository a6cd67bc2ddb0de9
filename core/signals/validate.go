package signals

import (
	"fmt"
	"math"
	"strings"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	gatejcs "github.com/davidahmann/modelgate/core/jcs"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

// Validate enforces the structural invariants of a signal bundle. Numeric
// anomalies the evaluators treat as fail-safe flags (NaN drift, NaN disparity)
// pass through; hard range violations are input_error.
func Validate(bundle schemasignals.Bundle) error {
	features := make(map[string]int, len(bundle.Drift))
	for index, metric := range bundle.Drift {
		prefix := fmt.Sprintf("drift[%d]", index)
		name := strings.TrimSpace(metric.Feature)
		if name == "" {
			return coreerrors.Input(prefix+".feature", "feature name is required")
		}
		if first, ok := features[name]; ok {
			return coreerrors.Input(prefix+".feature", "duplicate feature %q (first at drift[%d])", name, first)
		}
		features[name] = index
		if !math.IsNaN(metric.PSI) && metric.PSI < 0 {
			return coreerrors.Input(prefix+".psi", "must be >= 0, got %v", metric.PSI)
		}
		if err := checkUnit(prefix+".ks_stat", metric.KSStat, true); err != nil {
			return err
		}
		if err := checkUnit(prefix+".ks_pvalue", metric.KSPValue, true); err != nil {
			return err
		}
	}

	if performance := bundle.Performance; performance != nil {
		if value, ok := performance.AUROC.Get(); ok {
			if err := checkUnit("performance.auroc", value, true); err != nil {
				return err
			}
		}
		if value, ok := performance.AUPRC.Get(); ok {
			if err := checkUnit("performance.auprc", value, true); err != nil {
				return err
			}
		}
		if value, ok := performance.LogLoss.Get(); ok && !math.IsNaN(value) && value < 0 {
			return coreerrors.Input("performance.log_loss", "must be >= 0, got %v", value)
		}
	}

	groups := make(map[string]int, len(bundle.Fairness))
	for index, metric := range bundle.Fairness {
		prefix := fmt.Sprintf("fairness[%d]", index)
		name := strings.TrimSpace(metric.Group)
		if name == "" {
			return coreerrors.Input(prefix+".group", "group name is required")
		}
		if first, ok := groups[name]; ok {
			return coreerrors.Input(prefix+".group", "duplicate group %q (first at fairness[%d])", name, first)
		}
		groups[name] = index
		if metric.N < 0 {
			return coreerrors.Input(prefix+".n", "must be >= 0, got %d", metric.N)
		}
		if err := checkUnit(prefix+".positive_rate", metric.PositiveRate, false); err != nil {
			return err
		}
		if math.IsInf(metric.Disparity, 0) {
			return coreerrors.Input(prefix+".disparity", "must be finite or NaN, got %v", metric.Disparity)
		}
	}

	if explainability := bundle.Explainability; explainability != nil && explainability.TopFeaturesCount < 0 {
		return coreerrors.Input("explainability.top_features_count", "must be >= 0, got %d", explainability.TopFeaturesCount)
	}
	return nil
}

// Digest returns the canonical sha256 of the bundle as it will appear in evidence.
func Digest(bundle schemasignals.Bundle) (string, error) {
	if bundle.Drift == nil {
		bundle.Drift = []schemasignals.DriftMetric{}
	}
	if bundle.Fairness == nil {
		bundle.Fairness = []schemasignals.FairnessMetric{}
	}
	digest, err := gatejcs.DigestValue(bundle)
	if err != nil {
		return "", fmt.Errorf("digest signals: %w", err)
	}
	return digest, nil
}

func checkUnit(field string, value float64, allowNaN bool) error {
	if math.IsNaN(value) {
		if allowNaN {
			return nil
		}
		return coreerrors.Input(field, "must be a number in [0, 1]")
	}
	if value < 0 || value > 1 {
		return coreerrors.Input(field, "must be in [0, 1], got %v", value)
	}
	return nil
}
