package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/spf13/cobra"
)

func newUndoCmd(g *globalFlags) *cobra.Command {
	var (
		list  bool
		limit int
	)

	undoCmd := &cobra.Command{
		Use:   "undo [session-id]",
		Short: "Undo recent sort operations",
		Long: `Reverse the moves of a journaled session. Without an argument the most recent
session is undone; pass a session id (or a unique prefix) from "undo --list" to pick
another. Files are only moved back when their original location is free.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir, err := config.StateDir()
			if err != nil {
				return err
			}
			journal := log.NewJournal(filepath.Join(stateDir, "logs"), true)
			out := cmd.OutOrStdout()

			if list {
				return listSessions(cmd, journal, limit)
			}

			summary, err := findSession(journal, args)
			if errors.Is(err, log.ErrNoSessions) {
				fmt.Fprintln(out, "No operation sessions found to undo.")
				return nil
			}
			if err != nil {
				return err
			}

			meta := summary.Session.Metadata
			fmt.Fprintf(out, "Undoing %s session %s (%s, %d operations)\n",
				strings.Join(meta.CommandArgs, " "), shortID(meta.SessionID), summary.RelativeTime, meta.TotalOps)

			ok, failed, errs := log.UndoSession(summary.Session)
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
			}
			fmt.Fprintf(out, "Reverted %d operations, %d failed\n", ok, failed)

			if failed > 0 {
				return fmt.Errorf("%d operations could not be undone", failed)
			}
			if err := os.Remove(summary.FilePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove session log: %w", err)
			}
			return nil
		},
	}

	undoCmd.Flags().BoolVarP(&list, "list", "l", false, "List recent sessions instead of undoing")
	undoCmd.Flags().IntVar(&limit, "limit", 20, "Sessions to show with --list")
	return undoCmd
}

func listSessions(cmd *cobra.Command, journal *log.Journal, limit int) error {
	summaries, err := journal.Summaries(limit)
	if err != nil {
		return fmt.Errorf("failed to read log sessions: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No operation sessions found.")
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		meta := s.Session.Metadata
		rows = append(rows, []string{
			shortID(meta.SessionID),
			s.RelativeTime,
			s.Icon + " " + strings.Join(meta.CommandArgs, " "),
			fmt.Sprint(meta.SuccessfulOps),
			fmt.Sprint(meta.FailedOps),
			truncatePath(meta.SourceDir, maxPathWidth),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Session", "When", "Command", "Ops", "Failed", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

// findSession returns the newest session, or the one whose id starts with args[0].
func findSession(journal *log.Journal, args []string) (log.SessionSummary, error) {
	summaries, err := journal.Summaries(0)
	if err != nil {
		return log.SessionSummary{}, fmt.Errorf("failed to read log sessions: %w", err)
	}
	if len(summaries) == 0 {
		return log.SessionSummary{}, log.ErrNoSessions
	}
	if len(args) == 0 {
		return summaries[0], nil
	}

	var match []log.SessionSummary
	for _, s := range summaries {
		if strings.HasPrefix(s.Session.Metadata.SessionID, args[0]) {
			match = append(match, s)
		}
	}
	switch len(match) {
	case 0:
		return log.SessionSummary{}, fmt.Errorf("no session matches %q", args[0])
	case 1:
		return match[0], nil
	default:
		return log.SessionSummary{}, fmt.Errorf("session id %q is ambiguous (%d matches)", args[0], len(match))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
