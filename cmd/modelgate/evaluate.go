package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	"github.com/davidahmann/modelgate/core/fsx"
	"github.com/davidahmann/modelgate/core/gate"
	"github.com/davidahmann/modelgate/core/history"
	"github.com/davidahmann/modelgate/core/policy"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	schemasignals "github.com/davidahmann/modelgate/core/schema/v1/signals"
	"github.com/davidahmann/modelgate/core/sign"
	"github.com/davidahmann/modelgate/core/signals"
	"github.com/davidahmann/modelgate/core/telemetry"
)

const signedReportSchemaID = "modelgate.signed_report"

type evaluateFlags struct {
	policyPath      string
	bundlePath      string
	files           signals.Files
	reportPath      string
	signKeyPath     string
	historyDB       string
	metricsTextfile string
	sequential      bool
}

type evaluateOutput struct {
	OK               bool                  `json:"ok"`
	RunID            string                `json:"run_id"`
	OverallPassed    bool                  `json:"overall_passed"`
	FailedCategories []schemagate.Category `json:"failed_categories"`
	ReportPath       string                `json:"report_path"`
	ReportDigest     string                `json:"report_digest"`
	SignaturePath    string                `json:"signature_path,omitempty"`
	PolicyDigest     string                `json:"policy_digest"`
	SignalsDigest    string                `json:"signals_digest"`
}

func newEvaluateCommand(app *app) *cobra.Command {
	var flags evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate model signals against a release policy and write a decision report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runEvaluate(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.policyPath, "policy", "", "policy YAML file")
	cmd.Flags().StringVar(&flags.bundlePath, "bundle", "", "signals bundle JSON file")
	cmd.Flags().StringVar(&flags.files.Drift, "drift", "", "drift metrics CSV")
	cmd.Flags().StringVar(&flags.files.Performance, "performance", "", "performance metrics JSON")
	cmd.Flags().StringVar(&flags.files.Fairness, "fairness", "", "fairness metrics CSV")
	cmd.Flags().StringVar(&flags.files.Explainability, "explainability", "", "explainability artifact JSON")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "decision report output path")
	cmd.Flags().StringVar(&flags.signKeyPath, "sign-key", "", "ed25519 private key file for a detached report signature")
	cmd.Flags().StringVar(&flags.historyDB, "history-db", "", "SQLite decision history database")
	cmd.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "Prometheus textfile to write gate metrics to")
	cmd.Flags().BoolVar(&flags.sequential, "sequential", false, "run category evaluators one at a time")
	return cmd
}

func (app *app) runEvaluate(cmd *cobra.Command, flags evaluateFlags) error {
	textfile := firstNonEmpty(flags.metricsTextfile, app.config.MetricsTextfile)
	policyPath := firstNonEmpty(flags.policyPath, app.config.Policy)
	if policyPath == "" {
		return app.abortEvaluate(textfile, configError(fmt.Errorf("no policy given"), "policy_missing", "pass --policy or set policy in "+app.configPath))
	}
	document, err := policy.LoadPolicyFile(policyPath)
	if err != nil {
		return app.abortEvaluate(textfile, err)
	}
	bundle, err := loadSignals(flags)
	if err != nil {
		return app.abortEvaluate(textfile, err)
	}

	runID := uuid.NewString()
	logger := app.logger.With().Str("run_id", runID).Logger()
	logger.Info().Str("policy", policyPath).Bool("sequential", flags.sequential).Msg("gate evaluation started")

	report, err := gate.Evaluate(document, bundle, gate.EvalOptions{
		ProducerVersion: version,
		Now:             app.now,
		Sequential:      flags.sequential,
		OnTransition: func(state gate.State) {
			logger.Debug().Str("state", string(state)).Msg("gate state")
		},
	})
	if err != nil {
		logger.Warn().Str("error_category", string(coreerrors.CategoryOf(err))).Str("field", coreerrors.FieldOf(err)).Msg("gate evaluation aborted")
		return app.abortEvaluate(textfile, err)
	}

	encoded, err := gate.EncodeReport(report)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "report_encode_failed", "", false)
	}
	reportPath := firstNonEmpty(flags.reportPath, app.config.ReportPath)
	if err := fsx.WriteFileAtomic(reportPath, encoded, 0o600); err != nil {
		return ioError(fmt.Errorf("write report: %w", err), "report_write_failed")
	}
	reportDigest, err := gate.ReportDigest(report)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false)
	}

	output := evaluateOutput{
		OK:               report.OverallPassed,
		RunID:            runID,
		OverallPassed:    report.OverallPassed,
		FailedCategories: report.FailedCategories,
		ReportPath:       reportPath,
		ReportDigest:     reportDigest,
		PolicyDigest:     report.PolicyDigest,
		SignalsDigest:    report.SignalsDigest,
	}

	keyConfig := sign.KeyConfig{
		PrivateKeyPath: firstNonEmpty(flags.signKeyPath, app.config.Sign.PrivateKey),
		PrivateKeyEnv:  app.config.Sign.PrivateKeyEnv,
	}
	if flags.signKeyPath != "" {
		keyConfig.PrivateKeyEnv = ""
	}
	if keyConfig.HasPrivateSource() {
		signaturePath, err := writeSignature(keyConfig, reportPath, encoded)
		if err != nil {
			return err
		}
		output.SignaturePath = signaturePath
	}

	if historyDB := firstNonEmpty(flags.historyDB, app.config.HistoryDB); historyDB != "" {
		if err := recordHistory(cmd, historyDB, runID, report, reportDigest); err != nil {
			return err
		}
	}
	if textfile != "" {
		recorder := telemetry.NewRecorder()
		recorder.Observe(report)
		if err := recorder.WriteTextfile(textfile); err != nil {
			return ioError(err, "metrics_write_failed")
		}
	}

	categories := make([]string, 0, len(report.FailedCategories))
	for _, category := range report.FailedCategories {
		categories = append(categories, string(category))
	}
	logger.Info().
		Bool("overall_passed", report.OverallPassed).
		Strs("failed_categories", categories).
		Str("report_path", reportPath).
		Msg("gate decided")

	if app.jsonOutput {
		if err := app.writeJSON(output); err != nil {
			return err
		}
	} else {
		writeReportSummary(app, report, reportPath)
	}
	if !report.OverallPassed {
		return errGateFailed
	}
	return nil
}

// loadSignals accepts either one bundle file or the per-category files, not both.
func loadSignals(flags evaluateFlags) (schemasignals.Bundle, error) {
	perCategory := flags.files.Drift != "" || flags.files.Performance != "" ||
		flags.files.Fairness != "" || flags.files.Explainability != ""
	switch {
	case flags.bundlePath != "" && perCategory:
		return schemasignals.Bundle{}, usageError(fmt.Errorf("--bundle cannot be combined with per-category signal files"))
	case flags.bundlePath != "":
		return signals.LoadBundleFile(flags.bundlePath)
	case perCategory:
		return signals.LoadFiles(flags.files)
	default:
		return schemasignals.Bundle{}, usageError(fmt.Errorf("no signals given: pass --bundle or --drift/--performance/--fairness/--explainability"))
	}
}

func writeSignature(keyConfig sign.KeyConfig, reportPath string, encoded []byte) (string, error) {
	pair, err := sign.LoadSigningKey(keyConfig)
	if err != nil {
		return "", configError(err, "signing_key_invalid", "check sign.private_key or --sign-key")
	}
	signature, err := sign.SignReportJSON(pair.Private, encoded)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "sign_failed", "", false)
	}
	envelope := schemagate.SignedReport{
		SchemaID:     signedReportSchemaID,
		ReportDigest: signature.SignedDigest,
		Signature:    schemagate.Signature(signature),
	}
	signaturePath := signaturePathFor(reportPath)
	if err := fsx.WriteJSONAtomic(signaturePath, envelope, 0o600); err != nil {
		return "", ioError(fmt.Errorf("write signature: %w", err), "signature_write_failed")
	}
	return signaturePath, nil
}

func signaturePathFor(reportPath string) string {
	return strings.TrimSuffix(reportPath, ".json") + ".sig.json"
}

func recordHistory(cmd *cobra.Command, path, runID string, report schemagate.DecisionReport, reportDigest string) error {
	store, err := history.Open(path)
	if err != nil {
		return ioError(err, "history_open_failed")
	}
	defer func() { _ = store.Close() }()

	failed := make([]string, 0, len(report.FailedCategories))
	for _, category := range report.FailedCategories {
		failed = append(failed, string(category))
	}
	if _, err := store.Record(cmd.Context(), history.Entry{
		RunID:            runID,
		GeneratedAt:      report.GeneratedAt,
		OverallPassed:    report.OverallPassed,
		FailedCategories: failed,
		PolicyDigest:     report.PolicyDigest,
		ReportDigest:     reportDigest,
	}); err != nil {
		return ioError(err, "history_write_failed")
	}
	return nil
}

// abortEvaluate records an aborted run in the metrics textfile, if one is
// configured, and returns cause unchanged. A failed metrics write is logged so
// it never masks the abort reason.
func (app *app) abortEvaluate(textfile string, cause error) error {
	if textfile == "" {
		return cause
	}
	recorder := telemetry.NewRecorder()
	recorder.ObserveAborted()
	if err := recorder.WriteTextfile(textfile); err != nil {
		app.logger.Warn().Err(err).Str("path", textfile).Msg("metrics textfile not written")
	}
	return cause
}

func writeReportSummary(app *app, report schemagate.DecisionReport, reportPath string) {
	if report.OverallPassed {
		fmt.Fprintln(app.stdout, "gate passed")
	} else {
		names := make([]string, 0, len(report.FailedCategories))
		for _, category := range report.FailedCategories {
			names = append(names, string(category))
		}
		fmt.Fprintf(app.stdout, "gate failed: %s\n", strings.Join(names, ", "))
	}
	for _, category := range schemagate.Categories() {
		verdict := report.CategoryVerdicts[category]
		status := "pass"
		if !verdict.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(app.stdout, "  %-15s %s\n", category, status)
		for _, reason := range verdict.Reasons {
			fmt.Fprintf(app.stdout, "    - %s\n", reason)
		}
	}
	fmt.Fprintf(app.stdout, "report: %s\n", reportPath)
}
