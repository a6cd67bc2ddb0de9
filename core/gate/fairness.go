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

// evaluateFairness passes when the largest absolute disparity is at most the
// parity gap. The boundary is inclusive-pass, unlike drift.
func evaluateFairness(metrics []schemasignals.FairnessMetric, thresholds schemapolicy.FairnessThresholds) schemagate.CategoryVerdict {
	records := append([]schemasignals.FairnessMetric{}, metrics...)

	nonNumeric := []string{}
	exceeding := []schemasignals.FairnessMetric{}
	for _, metric := range records {
		if nonFinite(metric.Disparity) {
			nonNumeric = append(nonNumeric, strings.TrimSpace(metric.Group))
			continue
		}
		if math.Abs(metric.Disparity) > thresholds.ParityGapFail {
			exceeding = append(exceeding, metric)
		}
	}
	sort.Strings(nonNumeric)
	sort.SliceStable(exceeding, func(i, j int) bool {
		left, right := math.Abs(exceeding[i].Disparity), math.Abs(exceeding[j].Disparity)
		if left != right {
			return left > right
		}
		return strings.TrimSpace(exceeding[i].Group) < strings.TrimSpace(exceeding[j].Group)
	})

	reasons := make([]string, 0, len(nonNumeric)+len(exceeding))
	flagged := make([]string, 0, len(nonNumeric)+len(exceeding))
	for _, group := range nonNumeric {
		reasons = append(reasons, "non-numeric disparity for group "+group)
		flagged = append(flagged, group)
	}
	for _, metric := range exceeding {
		group := strings.TrimSpace(metric.Group)
		reasons = append(reasons, fmt.Sprintf(
			"group %s disparity=%v exceeds parity_gap_fail=%v (|disparity|=%v)",
			group,
			metric.Disparity,
			thresholds.ParityGapFail,
			math.Abs(metric.Disparity),
		))
		flagged = append(flagged, group)
	}

	evidence := schemagate.Evidence{Fairness: records, FlaggedGroups: flagged}
	if maxAbs := MaxAbsDisparity(records); len(records) > 0 && !math.IsNaN(maxAbs) {
		evidence.MaxAbsDisparity = &maxAbs
	}
	return schemagate.CategoryVerdict{
		Category: schemagate.CategoryFairness,
		Passed:   len(reasons) == 0,
		Reasons:  reasons,
		Evidence: evidence,
	}
}

// MaxAbsDisparity returns the largest |disparity| across groups, or NaN when any
// group has a non-finite disparity. Empty input yields 0.
func MaxAbsDisparity(metrics []schemasignals.FairnessMetric) float64 {
	maxAbs := 0.0
	for _, metric := range metrics {
		if nonFinite(metric.Disparity) {
			return math.NaN()
		}
		maxAbs = math.Max(maxAbs, math.Abs(metric.Disparity))
	}
	return maxAbs
}
