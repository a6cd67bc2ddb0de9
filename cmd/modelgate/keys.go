package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
	"github.com/davidahmann/modelgate/core/sign"
)

type keysInitOutput struct {
	OK             bool   `json:"ok"`
	KeyID          string `json:"key_id"`
	PublicKeyPath  string `json:"public_key_path"`
	PrivateKeyPath string `json:"private_key_path"`
}

func newKeysCommand(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local ed25519 report signing keys",
	}
	var outDir, name string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a new ed25519 keypair",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.runKeysInit(outDir, name, force)
		},
	}
	initCmd.Flags().StringVar(&outDir, "out-dir", filepath.Join(".modelgate", "keys"), "directory for generated key files")
	initCmd.Flags().StringVar(&name, "name", "modelgate", "key file name prefix")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	cmd.AddCommand(initCmd)
	return cmd
}

func (app *app) runKeysInit(outDir, name string, force bool) error {
	if !force {
		for _, path := range []string{filepath.Join(outDir, name+".key"), filepath.Join(outDir, name+".pub")} {
			if _, err := os.Stat(path); err == nil {
				return usageError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
			}
		}
	}
	pair, err := sign.GenerateKeyPair()
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "keygen_failed", "", false)
	}
	privatePath, publicPath, err := sign.WriteKeyPair(outDir, name, pair)
	if err != nil {
		return ioError(err, "key_write_failed")
	}
	output := keysInitOutput{
		OK:             true,
		KeyID:          sign.KeyID(pair.Public),
		PublicKeyPath:  publicPath,
		PrivateKeyPath: privatePath,
	}
	app.logger.Info().Str("key_id", output.KeyID).Msg("signing key generated")
	if app.jsonOutput {
		return app.writeJSON(output)
	}
	fmt.Fprintf(app.stdout, "key_id: %s\nprivate_key: %s\npublic_key: %s\n", output.KeyID, privatePath, publicPath)
	return nil
}
