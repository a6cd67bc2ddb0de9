package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
)

func TestRecorderWritesTextfile(t *testing.T) {
	recorder := NewRecorder()
	recorder.Observe(schemagate.DecisionReport{OverallPassed: true, FailedCategories: []schemagate.Category{}})
	recorder.Observe(schemagate.DecisionReport{
		OverallPassed:    false,
		FailedCategories: []schemagate.Category{schemagate.CategoryDrift, schemagate.CategoryFairness},
	})

	path := filepath.Join(t.TempDir(), "metrics", "modelgate.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `modelgate_gate_evaluations_total{outcome="pass"} 1`)
	assert.Contains(t, text, `modelgate_gate_evaluations_total{outcome="fail"} 1`)
	assert.Contains(t, text, `modelgate_gate_evaluations_total{outcome="aborted"} 0`)
	assert.Contains(t, text, `modelgate_category_failures_total{category="drift"} 1`)
	assert.Contains(t, text, `modelgate_category_failures_total{category="fairness"} 1`)
	assert.Contains(t, text, `modelgate_category_failures_total{category="performance"} 0`)
	assert.Contains(t, text, "modelgate_gate_last_passed 0")
}

func TestRecorderCountsAbortedRuns(t *testing.T) {
	recorder := NewRecorder()
	recorder.Observe(schemagate.DecisionReport{OverallPassed: true, FailedCategories: []schemagate.Category{}})
	recorder.ObserveAborted()

	path := filepath.Join(t.TempDir(), "modelgate.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `modelgate_gate_evaluations_total{outcome="aborted"} 1`)
	assert.Contains(t, text, `modelgate_gate_evaluations_total{outcome="pass"} 1`)
	assert.Contains(t, text, "modelgate_gate_last_passed 0")
}

func TestRecorderGathersAllFamilies(t *testing.T) {
	families, err := NewRecorder().Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.ElementsMatch(t, []string{
		"modelgate_category_failures_total",
		"modelgate_gate_evaluations_total",
		"modelgate_gate_last_passed",
	}, names)
}
