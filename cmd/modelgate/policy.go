package main

import (
	"fmt"

	"github.com/spf13/cobra"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	"github.com/davidahmann/modelgate/core/policy"
)

type policyLintOutput struct {
	OK bool `json:"ok"`
	policy.LintResult
}

func newPolicyCommand(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect release policy documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "lint POLICY",
			Short: "Validate a policy and warn about lenient thresholds",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return app.runPolicyLint(args[0])
			},
		},
		&cobra.Command{
			Use:   "digest POLICY",
			Short: "Print the canonical digest of a normalized policy",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return app.runPolicyDigest(args[0])
			},
		},
	)
	return cmd
}

func (app *app) runPolicyLint(path string) error {
	document, err := policy.LoadPolicyFile(path)
	if err != nil {
		return err
	}
	result, err := policy.Lint(document)
	if err != nil {
		return err
	}
	app.logger.Debug().Str("policy", path).Str("status", result.Status).Int("warnings", len(result.Warnings)).Msg("policy linted")
	if app.jsonOutput {
		return app.writeJSON(policyLintOutput{OK: true, LintResult: result})
	}
	fmt.Fprintf(app.stdout, "policy lint: %s\n", result.Status)
	for _, warning := range result.Warnings {
		fmt.Fprintf(app.stdout, "  warning: %s\n", warning)
	}
	fmt.Fprintf(app.stdout, "policy_digest: %s\n", result.PolicyDigest)
	return nil
}

func (app *app) runPolicyDigest(path string) error {
	document, err := policy.LoadPolicyFile(path)
	if err != nil {
		return err
	}
	normalized, err := policy.Normalize(document)
	if err != nil {
		return err
	}
	digest, err := policy.PolicyDigest(normalized)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "digest_failed", "", false)
	}
	if app.jsonOutput {
		return app.writeJSON(map[string]any{"ok": true, "policy_digest": digest})
	}
	fmt.Fprintln(app.stdout, digest)
	return nil
}
