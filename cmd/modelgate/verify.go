package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidahmann/modelgate/core/gate"
	schemagate "github.com/davidahmann/modelgate/core/schema/v1/gate"
	"github.com/davidahmann/modelgate/core/sign"
)

type verifyOutput struct {
	OK            bool   `json:"ok"`
	ReportPath    string `json:"report_path"`
	SignaturePath string `json:"signature_path"`
	KeyID         string `json:"key_id"`
	ReportDigest  string `json:"report_digest"`
	OverallPassed bool   `json:"overall_passed"`
}

func newVerifyCommand(app *app) *cobra.Command {
	var publicKeyPath string
	var signaturePath string
	cmd := &cobra.Command{
		Use:   "verify REPORT",
		Short: "Verify a decision report against its detached ed25519 signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.runVerify(args[0], signaturePath, publicKeyPath)
		},
	}
	cmd.Flags().StringVar(&publicKeyPath, "public-key", "", "ed25519 public key file")
	cmd.Flags().StringVar(&signaturePath, "signature", "", "signature envelope (defaults to REPORT with .sig.json)")
	return cmd
}

func (app *app) runVerify(reportPath, signaturePath, publicKeyPath string) error {
	keyPath := firstNonEmpty(publicKeyPath, app.config.Sign.PublicKey)
	if keyPath == "" {
		return usageError(fmt.Errorf("--public-key is required"))
	}
	publicKey, err := sign.LoadVerifyKey(sign.KeyConfig{PublicKeyPath: keyPath})
	if err != nil {
		return configError(err, "public_key_invalid", "check --public-key")
	}
	if signaturePath == "" {
		signaturePath = signaturePathFor(reportPath)
	}

	// #nosec G304 -- report path is explicit local user input.
	reportJSON, err := os.ReadFile(reportPath)
	if err != nil {
		return ioError(fmt.Errorf("read report: %w", err), "report_unreadable")
	}
	report, err := gate.DecodeReport(reportJSON)
	if err != nil {
		return verifyError(err, "report_schema_invalid")
	}
	// #nosec G304 -- signature path is explicit local user input.
	signatureJSON, err := os.ReadFile(signaturePath)
	if err != nil {
		return ioError(fmt.Errorf("read signature: %w", err), "signature_unreadable")
	}
	var envelope schemagate.SignedReport
	if err := json.Unmarshal(signatureJSON, &envelope); err != nil {
		return verifyError(fmt.Errorf("decode signature: %w", err), "signature_invalid")
	}
	if envelope.SchemaID != signedReportSchemaID {
		return verifyError(fmt.Errorf("unexpected signature schema_id %q", envelope.SchemaID), "signature_invalid")
	}
	signature := sign.Signature(envelope.Signature)
	if envelope.ReportDigest != signature.SignedDigest {
		return verifyError(fmt.Errorf("report_digest does not match signed_digest"), "signature_invalid")
	}
	ok, err := sign.VerifyReportJSON(publicKey, signature, reportJSON)
	if err != nil {
		return verifyError(err, "signature_mismatch")
	}
	if !ok {
		return verifyError(fmt.Errorf("signature does not verify"), "signature_mismatch")
	}

	app.logger.Info().Str("report", reportPath).Str("key_id", signature.KeyID).Msg("report verified")
	output := verifyOutput{
		OK:            true,
		ReportPath:    reportPath,
		SignaturePath: signaturePath,
		KeyID:         signature.KeyID,
		ReportDigest:  envelope.ReportDigest,
		OverallPassed: report.OverallPassed,
	}
	if app.jsonOutput {
		return app.writeJSON(output)
	}
	fmt.Fprintf(app.stdout, "verified %s (key_id=%s digest=%s)\n", reportPath, output.KeyID, output.ReportDigest)
	return nil
}
