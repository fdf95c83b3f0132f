package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jwulff/stmtimport/internal/history"
	"github.com/jwulff/stmtimport/internal/ui"
)

var errHistoryDisabled = errors.New("import history is disabled in the config")

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recent imports, or show one by session id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			path := cfg.HistoryPath(history.DefaultDBPath())
			if path == "" {
				return errHistoryDisabled
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showImport(cmd.OutOrStdout(), store, args[0])
			}
			return listImports(cmd.OutOrStdout(), store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of imports to list")

	return cmd
}

func listImports(out io.Writer, store *history.Store, limit int) error {
	entries, err := store.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No imports recorded yet.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.DividerStyle).
		Headers("#", "IMPORTED", "FILE", "METHOD", "CREATED", "SKIPPED", "FAILED", "DEBITS", "CREDITS")
	for _, e := range entries {
		created := strconv.Itoa(e.Created)
		if e.Partial() {
			created += "/" + strconv.Itoa(e.Submitted)
		}
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.ImportedAt.Local().Format("2006-01-02 15:04"),
			e.FileName,
			e.Method,
			created,
			strconv.Itoa(e.SkippedDuplicates),
			strconv.Itoa(e.Failed),
			e.Debits.StringFixed(2),
			e.Credits.StringFixed(2),
		)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

func showImport(out io.Writer, store *history.Store, sessionID string) error {
	e, err := store.ForSession(sessionID)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("no import recorded for session %s", sessionID)
	}
	fmt.Fprintf(out, "Session:   %s\n", e.SessionID)
	fmt.Fprintf(out, "File:      %s\n", e.FileName)
	fmt.Fprintf(out, "Method:    %s\n", e.Method)
	fmt.Fprintf(out, "Imported:  %s\n", e.ImportedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Submitted: %d\n", e.Submitted)
	fmt.Fprintf(out, "Created:   %d\n", e.Created)
	fmt.Fprintf(out, "Skipped:   %d\n", e.SkippedDuplicates)
	fmt.Fprintf(out, "Failed:    %d\n", e.Failed)
	fmt.Fprintf(out, "Debits:    %s\n", e.Debits.StringFixed(2))
	fmt.Fprintf(out, "Credits:   %s\n", e.Credits.StringFixed(2))
	return nil
}
