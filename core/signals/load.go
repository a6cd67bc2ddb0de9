package signals

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
	"github.com/davidahmann/modelgate/core/schema/validate"
)

// Column aliases accepted in metric tables, canonical name first.
var (
	driftColumns = map[string][]string{
		"feature":   {"feature", "feature_name"},
		"psi":       {"psi", "psi_score"},
		"ks_stat":   {"ks_stat", "ks", "ks_statistic"},
		"ks_pvalue": {"ks_pvalue", "ks_p_value", "ks_p"},
	}
	fairnessColumns = map[string][]string{
		"group":         {"group", "group_name"},
		"n":             {"n", "count"},
		"positive_rate": {"positive_rate", "pos_rate"},
		"disparity":     {"disparity", "parity_gap"},
	}
)

// Files names the per-category inputs; empty paths are skipped.
type Files struct {
	Drift          string
	Performance    string
	Fairness       string
	Explainability string
}

func LoadFiles(files Files) (schemasignals.Bundle, error) {
	bundle := schemasignals.Bundle{
		Drift:    []schemasignals.DriftMetric{},
		Fairness: []schemasignals.FairnessMetric{},
	}
	var err error
	if files.Drift != "" {
		if bundle.Drift, err = LoadDriftCSV(files.Drift); err != nil {
			return schemasignals.Bundle{}, err
		}
	}
	if files.Performance != "" {
		performance, err := LoadPerformanceJSON(files.Performance)
		if err != nil {
			return schemasignals.Bundle{}, err
		}
		bundle.Performance = &performance
	}
	if files.Fairness != "" {
		if bundle.Fairness, err = LoadFairnessCSV(files.Fairness); err != nil {
			return schemasignals.Bundle{}, err
		}
	}
	if files.Explainability != "" {
		explainability, err := LoadExplainabilityJSON(files.Explainability)
		if err != nil {
			return schemasignals.Bundle{}, err
		}
		bundle.Explainability = &explainability
	}
	return bundle, nil
}

// LoadBundleFile reads a single JSON document carrying all four categories.
func LoadBundleFile(path string) (schemasignals.Bundle, error) {
	content, err := readInput(path)
	if err != nil {
		return schemasignals.Bundle{}, err
	}
	return ParseBundleJSON(content)
}

func ParseBundleJSON(content []byte) (schemasignals.Bundle, error) {
	if err := validate.ValidateSignalsBundle(content); err != nil {
		return schemasignals.Bundle{}, inputWrap(fmt.Errorf("signals bundle: %w", err), "signals_schema_invalid")
	}
	var bundle schemasignals.Bundle
	if err := json.Unmarshal(content, &bundle); err != nil {
		return schemasignals.Bundle{}, inputWrap(fmt.Errorf("decode signals bundle: %w", err), "signals_unparsable")
	}
	if bundle.Drift == nil {
		bundle.Drift = []schemasignals.DriftMetric{}
	}
	if bundle.Fairness == nil {
		bundle.Fairness = []schemasignals.FairnessMetric{}
	}
	return bundle, nil
}

func LoadDriftCSV(path string) ([]schemasignals.DriftMetric, error) {
	content, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return ParseDriftCSV(bytes.NewReader(content))
}

// ParseDriftCSV reads feature,psi,ks_stat,ks_pvalue rows. Cells that do not
// parse as finite numbers become NaN so the drift evaluator flags them and the
// evidence records the same value the reason describes.
func ParseDriftCSV(reader io.Reader) ([]schemasignals.DriftMetric, error) {
	columns, rows, err := readTable("drift", reader, driftColumns)
	if err != nil {
		return nil, err
	}
	metrics := make([]schemasignals.DriftMetric, 0, len(rows))
	for _, row := range rows {
		metrics = append(metrics, schemasignals.DriftMetric{
			Feature:  strings.TrimSpace(row[columns["feature"]]),
			PSI:      lenientFloat(row[columns["psi"]]),
			KSStat:   lenientFloat(row[columns["ks_stat"]]),
			KSPValue: lenientFloat(row[columns["ks_pvalue"]]),
		})
	}
	return metrics, nil
}

func LoadFairnessCSV(path string) ([]schemasignals.FairnessMetric, error) {
	content, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return ParseFairnessCSV(bytes.NewReader(content))
}

// ParseFairnessCSV reads group,n,positive_rate,disparity rows. An empty or NaN
// disparity is kept as NaN; every other malformed cell, including an infinite
// disparity, is an input_error.
func ParseFairnessCSV(reader io.Reader) ([]schemasignals.FairnessMetric, error) {
	columns, rows, err := readTable("fairness", reader, fairnessColumns)
	if err != nil {
		return nil, err
	}
	metrics := make([]schemasignals.FairnessMetric, 0, len(rows))
	for index, row := range rows {
		prefix := fmt.Sprintf("fairness[%d]", index)
		n, err := strconv.Atoi(strings.TrimSpace(row[columns["n"]]))
		if err != nil {
			return nil, coreerrors.Input(prefix+".n", "must be an integer, got %q", row[columns["n"]])
		}
		positiveRate, err := strconv.ParseFloat(strings.TrimSpace(row[columns["positive_rate"]]), 64)
		if err != nil {
			return nil, coreerrors.Input(prefix+".positive_rate", "must be a number, got %q", row[columns["positive_rate"]])
		}
		disparityCell := strings.TrimSpace(row[columns["disparity"]])
		disparity := math.NaN()
		if disparityCell != "" {
			disparity, err = strconv.ParseFloat(disparityCell, 64)
			if err != nil || math.IsInf(disparity, 0) {
				return nil, coreerrors.Input(prefix+".disparity", "must be a finite number, got %q", disparityCell)
			}
		}
		metrics = append(metrics, schemasignals.FairnessMetric{
			Group:        strings.TrimSpace(row[columns["group"]]),
			N:            n,
			PositiveRate: positiveRate,
			Disparity:    disparity,
		})
	}
	return metrics, nil
}

func LoadPerformanceJSON(path string) (schemasignals.PerformanceMetric, error) {
	content, err := readInput(path)
	if err != nil {
		return schemasignals.PerformanceMetric{}, err
	}
	var performance schemasignals.PerformanceMetric
	if err := json.Unmarshal(content, &performance); err != nil {
		return schemasignals.PerformanceMetric{}, inputWrap(fmt.Errorf("decode performance metrics: %w", err), "signals_unparsable")
	}
	return performance, nil
}

func LoadExplainabilityJSON(path string) (schemasignals.ExplainabilityArtifact, error) {
	content, err := readInput(path)
	if err != nil {
		return schemasignals.ExplainabilityArtifact{}, err
	}
	var explainability schemasignals.ExplainabilityArtifact
	if err := json.Unmarshal(content, &explainability); err != nil {
		return schemasignals.ExplainabilityArtifact{}, inputWrap(fmt.Errorf("decode explainability signal: %w", err), "signals_unparsable")
	}
	return explainability, nil
}

func readTable(table string, reader io.Reader, aliases map[string][]string) (map[string]int, [][]string, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, coreerrors.Input(table, "table is empty, a header row is required")
	}
	if err != nil {
		return nil, nil, inputWrap(fmt.Errorf("read %s header: %w", table, err), "signals_unparsable")
	}

	positions := make(map[string]int, len(header))
	for index, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := positions[normalized]; !ok {
			positions[normalized] = index
		}
	}
	columns := make(map[string]int, len(aliases))
	for canonical, names := range aliases {
		for _, name := range names {
			if index, ok := positions[name]; ok {
				columns[canonical] = index
				break
			}
		}
		if _, ok := columns[canonical]; !ok {
			return nil, nil, coreerrors.Input(table+"."+canonical, "required column is missing")
		}
	}

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, inputWrap(fmt.Errorf("read %s rows: %w", table, err), "signals_unparsable")
	}
	return columns, rows, nil
}

func lenientFloat(cell string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsInf(value, 0) {
		return math.NaN()
	}
	return value
}

func readInput(path string) ([]byte, error) {
	// #nosec G304 -- metric paths are explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read signals: %w", err), coreerrors.CategoryInput, "signals_unreadable", "check the metric input paths", false)
	}
	return content, nil
}

func inputWrap(err error, code string) error {
	return coreerrors.Wrap(err, coreerrors.CategoryInput, code, "fix the metric input document", false)
}
