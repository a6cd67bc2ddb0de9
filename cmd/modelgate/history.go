package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidahmann/modelgate/core/history"
)

type historyListOutput struct {
	OK      bool            `json:"ok"`
	Entries []history.Entry `json:"entries"`
}

func newHistoryCommand(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded gate decisions",
	}
	var dbPath string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent gate decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runHistoryList(cmd, dbPath, limit)
		},
	}
	listCmd.Flags().StringVar(&dbPath, "history-db", "", "SQLite decision history database")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")
	cmd.AddCommand(listCmd)
	return cmd
}

func (app *app) runHistoryList(cmd *cobra.Command, dbPath string, limit int) error {
	path := firstNonEmpty(dbPath, app.config.HistoryDB)
	if path == "" {
		return usageError(fmt.Errorf("--history-db is required"))
	}
	store, err := history.Open(path)
	if err != nil {
		return ioError(err, "history_open_failed")
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(cmd.Context(), limit)
	if err != nil {
		return ioError(err, "history_read_failed")
	}
	if app.jsonOutput {
		return app.writeJSON(historyListOutput{OK: true, Entries: entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(app.stdout, "no recorded decisions")
		return nil
	}
	for _, entry := range entries {
		outcome := "pass"
		if !entry.OverallPassed {
			outcome = "fail"
		}
		line := fmt.Sprintf("%s  %s  %s", entry.GeneratedAt.Format(time.RFC3339), entry.RunID, outcome)
		if len(entry.FailedCategories) > 0 {
			line += "  " + strings.Join(entry.FailedCategories, ",")
		}
		fmt.Fprintln(app.stdout, line)
	}
	return nil
}
