package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	"github.com/davidahmann/modelgate/core/evidence"
	"github.com/davidahmann/modelgate/core/fsx"
)

func newEvidenceCommand(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Record integrity digests of release artifacts",
	}
	var outPath string
	digestCmd := &cobra.Command{
		Use:   "digest FILE...",
		Short: "Hash each artifact and print a manifest with a canonical digest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.runEvidenceDigest(args, outPath)
		},
	}
	digestCmd.Flags().StringVar(&outPath, "out", "", "write the manifest to this path")
	cmd.AddCommand(digestCmd)
	return cmd
}

func (app *app) runEvidenceDigest(paths []string, outPath string) error {
	manifest, err := evidence.Digest(paths)
	if err != nil {
		return ioError(err, "evidence_unreadable")
	}
	missing := 0
	for _, file := range manifest.Files {
		if !file.Exists {
			missing++
			app.logger.Warn().Str("path", file.Path).Msg("evidence artifact missing")
		}
	}
	if outPath != "" {
		if err := fsx.WriteJSONAtomic(outPath, manifest, 0o600); err != nil {
			return ioError(err, "evidence_write_failed")
		}
		if app.jsonOutput {
			return app.writeJSON(map[string]any{"ok": true, "path": outPath, "manifest_digest": manifest.ManifestDigest, "missing": missing})
		}
		fmt.Fprintf(app.stdout, "manifest_digest: %s\nwritten: %s\n", manifest.ManifestDigest, outPath)
		return nil
	}
	if app.jsonOutput {
		return app.writeJSON(manifest)
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "encode_failed", "", false)
	}
	fmt.Fprintln(app.stdout, string(encoded))
	return nil
}
