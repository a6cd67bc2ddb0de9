package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
)

const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
	// OutcomeAborted counts runs that ended before a decision, such as invalid
	// policy or signal input.
	OutcomeAborted = "aborted"
)

// Recorder holds gate metrics on a private registry so they can be exported
// to a node_exporter textfile after a single CLI run.
type Recorder struct {
	registry         *prometheus.Registry
	evaluations      *prometheus.CounterVec
	categoryFailures *prometheus.CounterVec
	lastPassed       prometheus.Gauge
}

func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_gate_evaluations_total",
				Help: "Gate evaluations by outcome.",
			},
			[]string{"outcome"},
		),
		categoryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_category_failures_total",
				Help: "Failed category verdicts by category.",
			},
			[]string{"category"},
		),
		lastPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modelgate_gate_last_passed",
			Help: "1 if the most recent evaluation passed, 0 otherwise.",
		}),
	}
	recorder.registry.MustRegister(recorder.evaluations, recorder.categoryFailures, recorder.lastPassed)
	for _, outcome := range []string{OutcomePass, OutcomeFail, OutcomeAborted} {
		recorder.evaluations.WithLabelValues(outcome)
	}
	for _, category := range schemagate.Categories() {
		recorder.categoryFailures.WithLabelValues(string(category))
	}
	return recorder
}

func (recorder *Recorder) Observe(report schemagate.DecisionReport) {
	if report.OverallPassed {
		recorder.evaluations.WithLabelValues(OutcomePass).Inc()
		recorder.lastPassed.Set(1)
	} else {
		recorder.evaluations.WithLabelValues(OutcomeFail).Inc()
		recorder.lastPassed.Set(0)
	}
	for _, category := range report.FailedCategories {
		recorder.categoryFailures.WithLabelValues(string(category)).Inc()
	}
}

// ObserveAborted counts a run that produced no decision report. An aborted run
// never counts as passed.
func (recorder *Recorder) ObserveAborted() {
	recorder.evaluations.WithLabelValues(OutcomeAborted).Inc()
	recorder.lastPassed.Set(0)
}

func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

// WriteTextfile writes the registry in the text exposition format. The write is
// atomic so a scraping node_exporter never sees a partial file.
func (recorder *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, recorder.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
