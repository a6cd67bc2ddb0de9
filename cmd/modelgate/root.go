package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/davidahmann/modelgate/core/logx"
	"github.com/davidahmann/modelgate/core/projectconfig"
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool

	config projectconfig.Config
	logger zerolog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		config: projectconfig.Defaults(),
		logger: zerolog.Nop(),
	}
}

func newRootCommand(app *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "modelgate",
		Short:         "Release gate for model drift, performance, fairness, and explainability evidence",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(app.stdout, "modelgate", version)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&app.configPath, "config", projectconfig.DefaultPath, "project config file")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "log format (console, json)")
	root.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "emit JSON output")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newEvaluateCommand(app),
		newPolicyCommand(app),
		newVerifyCommand(app),
		newKeysCommand(app),
		newEvidenceCommand(app),
		newHistoryCommand(app),
		newVersionCommand(app),
	)
	return root
}

// setup loads project config and builds the logger. A missing config file at
// the default path is fine; an explicit --config must exist.
func (app *app) setup() error {
	allowMissing := app.configPath == projectconfig.DefaultPath
	configuration, err := projectconfig.Load(app.configPath, allowMissing)
	if err != nil {
		return configError(err, "project_config_invalid", "fix "+app.configPath)
	}
	app.config = configuration

	logger, err := logx.New(logx.Options{
		Level:  logx.Resolve(app.logLevel, logx.EnvLevel, configuration.Log.Level),
		Format: logx.Resolve(app.logFormat, logx.EnvFormat, configuration.Log.Format),
		Writer: app.stderr,
	})
	if err != nil {
		return usageError(err)
	}
	app.logger = logger
	return nil
}

func newVersionCommand(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.jsonOutput {
				return app.writeJSON(map[string]any{"ok": true, "version": version})
			}
			fmt.Fprintln(app.stdout, "modelgate", version)
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
