package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

// driftFlag reports whether a feature drifted. Thresholds are inclusive-fail
// and any non-finite metric counts as non-numeric drift.
func driftFlag(metric schemasignals.DriftMetric, thresholds schemapolicy.DriftThresholds) (flagged bool, nonNumeric bool) {
	if nonFinite(metric.PSI) || nonFinite(metric.KSStat) || nonFinite(metric.KSPValue) {
		return true, true
	}
	return metric.PSI >= thresholds.PSIFail || metric.KSStat >= thresholds.KSFail, false
}

func evaluateDrift(metrics []schemasignals.DriftMetric, thresholds schemapolicy.DriftThresholds) schemagate.CategoryVerdict {
	records := append([]schemasignals.DriftMetric{}, metrics...)

	type flaggedFeature struct {
		metric     schemasignals.DriftMetric
		nonNumeric bool
	}
	flagged := make([]flaggedFeature, 0, len(records))
	for _, metric := range records {
		if isFlagged, nonNumeric := driftFlag(metric, thresholds); isFlagged {
			flagged = append(flagged, flaggedFeature{metric: metric, nonNumeric: nonNumeric})
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		left, right := flagged[i].metric, flagged[j].metric
		if nonFinite(left.PSI) != nonFinite(right.PSI) {
			return nonFinite(left.PSI)
		}
		if !nonFinite(left.PSI) && left.PSI != right.PSI {
			return left.PSI > right.PSI
		}
		return strings.TrimSpace(left.Feature) < strings.TrimSpace(right.Feature)
	})

	reasons := make([]string, 0, len(flagged))
	names := make([]string, 0, len(flagged))
	for _, feature := range flagged {
		name := strings.TrimSpace(feature.metric.Feature)
		names = append(names, name)
		if feature.nonNumeric {
			reasons = append(reasons, "non-numeric metric for feature "+name)
			continue
		}
		reasons = append(reasons, fmt.Sprintf(
			"feature %s drifted: psi=%v (fail >= %v), ks_stat=%v (fail >= %v)",
			name,
			feature.metric.PSI,
			thresholds.PSIFail,
			feature.metric.KSStat,
			thresholds.KSFail,
		))
	}

	return schemagate.CategoryVerdict{
		Category: schemagate.CategoryDrift,
		Passed:   len(flagged) == 0,
		Reasons:  reasons,
		Evidence: schemagate.Evidence{
			Drift:           records,
			FlaggedFeatures: names,
		},
	}
}

func nonFinite(value float64) bool {
	return math.IsNaN(value) || math.IsInf(value, 0)
}
