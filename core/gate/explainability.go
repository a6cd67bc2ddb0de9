package gate

import (
	"fmt"

	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
)

const artifactAbsentReason = "shap artifact required but absent"

// evaluateExplainability requires a SHAP artifact with enough top features when
// the policy asks for one. An absent artifact reports only the absence: the
// feature-count reason is suppressed because absence already explains it.
func evaluateExplainability(artifact *schemasignals.ExplainabilityArtifact, requirement schemapolicy.ExplainabilityRequirement) schemagate.CategoryVerdict {
	var record schemasignals.ExplainabilityArtifact
	if artifact != nil {
		record = *artifact
	}

	reasons := []string{}
	if requirement.RequireSHAPArtifact {
		switch {
		case !record.ArtifactPresent:
			reasons = append(reasons, artifactAbsentReason)
		case record.TopFeaturesCount < requirement.TopFeaturesMin:
			reasons = append(reasons, fmt.Sprintf(
				"shap artifact lists %d top features, policy requires at least %d",
				record.TopFeaturesCount,
				requirement.TopFeaturesMin,
			))
		}
	}

	return schemagate.CategoryVerdict{
		Category: schemagate.CategoryExplainability,
		Passed:   len(reasons) == 0,
		Reasons:  reasons,
		Evidence: schemagate.Evidence{Explainability: &record},
	}
}
