package gate

import (
	"sync"
	"time"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	"github.com/davidahmann/modelgate/core/policy"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemapolicy "github.com/davidahmann/modelgate/core/schema/v1/policy"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
	"github.com/davidahmann/modelgate/core/signals"
)

const (
	ReportSchemaID = "modelgate.decision_report"
	ReportSchemaV1 = "1.0.0"
)

type State string

const (
	StatePending    State = "pending"
	StateEvaluating State = "evaluating"
	StateDecided    State = "decided"
)

type EvalOptions struct {
	ProducerVersion string
	// Now stamps generated_at. Defaults to time.Now.
	Now func() time.Time
	// Sequential runs the category evaluators one after another. Results are
	// identical either way.
	Sequential bool
	// OnTransition observes state changes. It is called synchronously.
	OnTransition func(State)
}

type categoryEvaluator func(schemapolicy.Document, schemasignals.Bundle) schemagate.CategoryVerdict

var categoryEvaluators = [...]categoryEvaluator{
	func(document schemapolicy.Document, bundle schemasignals.Bundle) schemagate.CategoryVerdict {
		return evaluateDrift(bundle.Drift, document.Drift)
	},
	func(document schemapolicy.Document, bundle schemasignals.Bundle) schemagate.CategoryVerdict {
		return evaluatePerformance(bundle.Performance, document.Performance)
	},
	func(document schemapolicy.Document, bundle schemasignals.Bundle) schemagate.CategoryVerdict {
		return evaluateFairness(bundle.Fairness, document.Fairness)
	},
	func(document schemapolicy.Document, bundle schemasignals.Bundle) schemagate.CategoryVerdict {
		return evaluateExplainability(bundle.Explainability, document.Explainability)
	},
}

// Evaluate judges one signal bundle against one policy. A config_error or
// input_error aborts before any category runs and no report is produced; a
// failing category is a normal outcome recorded in the report.
func Evaluate(document schemapolicy.Document, bundle schemasignals.Bundle, opts EvalOptions) (schemagate.DecisionReport, error) {
	transition := func(state State) {
		if opts.OnTransition != nil {
			opts.OnTransition(state)
		}
	}
	transition(StatePending)

	normalized, err := policy.Normalize(document)
	if err != nil {
		return schemagate.DecisionReport{}, err
	}
	if err := signals.Validate(bundle); err != nil {
		return schemagate.DecisionReport{}, err
	}
	policyDigest, err := policy.PolicyDigest(normalized)
	if err != nil {
		return schemagate.DecisionReport{}, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false)
	}
	signalsDigest, err := signals.Digest(bundle)
	if err != nil {
		return schemagate.DecisionReport{}, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false)
	}

	transition(StateEvaluating)
	verdicts := runEvaluators(normalized, bundle, opts.Sequential)

	report := buildReport(normalized, verdicts, opts)
	report.PolicyDigest = policyDigest
	report.SignalsDigest = signalsDigest
	transition(StateDecided)
	return report, nil
}

func runEvaluators(document schemapolicy.Document, bundle schemasignals.Bundle, sequential bool) []schemagate.CategoryVerdict {
	verdicts := make([]schemagate.CategoryVerdict, len(categoryEvaluators))
	if sequential {
		for index, evaluate := range categoryEvaluators {
			verdicts[index] = evaluate(document, bundle)
		}
		return verdicts
	}
	var wg sync.WaitGroup
	for index, evaluate := range categoryEvaluators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdicts[index] = evaluate(document, bundle)
		}()
	}
	wg.Wait()
	return verdicts
}

func buildReport(document schemapolicy.Document, verdicts []schemagate.CategoryVerdict, opts EvalOptions) schemagate.DecisionReport {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	producerVersion := opts.ProducerVersion
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}

	overall := true
	failed := []schemagate.Category{}
	byCategory := make(map[schemagate.Category]schemagate.CategoryVerdict, len(verdicts))
	for _, verdict := range verdicts {
		byCategory[verdict.Category] = verdict
	}
	for _, category := range schemagate.Categories() {
		if verdict := byCategory[category]; !verdict.Passed {
			overall = false
			failed = append(failed, category)
		}
	}

	return schemagate.DecisionReport{
		SchemaID:         ReportSchemaID,
		SchemaVersion:    ReportSchemaV1,
		ProducerVersion:  producerVersion,
		OverallPassed:    overall,
		FailedCategories: failed,
		CategoryVerdicts: byCategory,
		GeneratedAt:      now().UTC(),
		PolicySnapshot:   document,
	}
}
