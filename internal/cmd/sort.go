package cmd

import (
	"fmt"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/Digital-Shane/sort-me-down/internal/tui/progress"
	"github.com/Digital-Shane/sort-me-down/internal/tui/theme"
	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newSortCmd(g *globalFlags) *cobra.Command {
	var useTUI bool

	sortCmd := &cobra.Command{
		Use:   "sort",
		Short: "Run one pass over the source directory",
		Long: `Scan the source directory once, look every video file up and move it into the
library. Unmatched files go to the mismatched directory unless the fallback policy
says otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, withLookups, "sort")
			if err != nil {
				return err
			}
			defer a.Close()

			var report core.Report
			if useTUI {
				report, err = runPassTUI(cmd, a.sorter)
			} else {
				report, err = a.sorter.RunPass(cmd.Context())
			}

			writeReport(cmd.OutOrStdout(), report, g.verbose)
			if err != nil {
				return err
			}
			if report.Counts.Errored > 0 {
				return fmt.Errorf("%d files could not be sorted", report.Counts.Errored)
			}
			return nil
		},
	}

	sortCmd.Flags().Bool("fr", false, "Route French titles to the French library folders")
	sortCmd.Flags().Bool("cleanup-in-place", false, "Reorganize files inside the source directory")
	sortCmd.Flags().BoolVar(&useTUI, "tui", false, "Show interactive progress")
	return sortCmd
}

func runPassTUI(cmd *cobra.Command, starter progress.PassStarter) (core.Report, error) {
	model := progress.NewPassProgressModel(cmd.Context(), starter, theme.Default())
	// The model derives its context from cmd, so an interrupt still drains
	// the pass to its final event before the program exits.
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return core.Report{}, err
	}
	pm, ok := final.(*progress.PassProgressModel)
	if !ok {
		return core.Report{}, fmt.Errorf("unexpected model type %T after sorting", final)
	}
	if pm.Report() == nil {
		return core.Report{}, fmt.Errorf("pass did not finish")
	}
	return *pm.Report(), pm.Err()
}
