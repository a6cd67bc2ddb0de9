package gate

import (
	"fmt"
	"math"

	schemacommon "github.com/davidahmann/modelgate/core/schema/v1/common"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

const missingAUROCReason = "missing required performance metric: auroc"

// evaluatePerformance checks each configured threshold on its own. Optional
// thresholds only apply when both the threshold and the metric are present.
func evaluatePerformance(metric *schemasignals.PerformanceMetric, thresholds schemapolicy.PerformanceThresholds) schemagate.CategoryVerdict {
	var record schemasignals.PerformanceMetric
	var evidence *schemasignals.PerformanceMetric
	if metric != nil {
		record = *metric
		evidence = &record
	}

	reasons := []string{}
	auroc, ok := record.AUROC.Get()
	switch {
	case !ok:
		reasons = append(reasons, missingAUROCReason)
	case math.IsNaN(auroc):
		reasons = append(reasons, "non-numeric performance metric: auroc")
	case auroc < thresholds.MinAUROC:
		reasons = append(reasons, fmt.Sprintf("auroc=%v is below min_auroc=%v", auroc, thresholds.MinAUROC))
	}

	if reason, failed := checkOptional("auprc", record.AUPRC, "min_auprc", thresholds.MinAUPRC, func(value, limit float64) bool {
		return value < limit
	}, "is below"); failed {
		reasons = append(reasons, reason)
	}
	if reason, failed := checkOptional("log_loss", record.LogLoss, "max_log_loss", thresholds.MaxLogLoss, func(value, limit float64) bool {
		return value > limit
	}, "exceeds"); failed {
		reasons = append(reasons, reason)
	}

	return schemagate.CategoryVerdict{
		Category: schemagate.CategoryPerformance,
		Passed:   len(reasons) == 0,
		Reasons:  reasons,
		Evidence: schemagate.Evidence{Performance: evidence},
	}
}

func checkOptional(
	metricName string,
	metric schemacommon.Optional[float64],
	thresholdName string,
	threshold schemacommon.Optional[float64],
	violates func(value, limit float64) bool,
	verb string,
) (string, bool) {
	limit, configured := threshold.Get()
	value, present := metric.Get()
	if !configured || !present {
		return "", false
	}
	if math.IsNaN(value) {
		return "non-numeric performance metric: " + metricName, true
	}
	if violates(value, limit) {
		return fmt.Sprintf("%s=%v %s %s=%v", metricName, value, verb, thresholdName, limit), true
	}
	return "", false
}
