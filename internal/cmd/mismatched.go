package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMismatchedCmd(g *globalFlags) *cobra.Command {
	mismatchedCmd := &cobra.Command{
		Use:     "mismatched",
		Aliases: []string{"mm"},
		Short:   "Review files that could not be matched",
	}
	mismatchedCmd.AddCommand(
		newMismatchedListCmd(g),
		newMismatchedReprocessCmd(g),
		newMismatchedForceCmd(g),
		newMismatchedDeleteCmd(g),
	)
	return mismatchedCmd
}

func newMismatchedListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List files waiting in the mismatched directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, offline)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.sorter.ListMismatched()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No files in %s\n", a.sorter.MismatchedDir())
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				size, age := "?", "?"
				if info, err := os.Stat(e.Path); err == nil {
					size = humanize.Bytes(uint64(info.Size()))
					age = humanize.Time(info.ModTime())
				}
				rows = append(rows, []string{
					truncatePath(filepath.Base(e.Path), maxPathWidth),
					fmt.Sprint(len(e.Sidecars)),
					size,
					age,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Sidecars", "Size", "Added"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newMismatchedReprocessCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <file>...",
		Short: "Look files up again and sort them if they now match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, withLookups)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, path := range args {
				rec, err := a.sorter.Reprocess(cmd.Context(), path)
				printRecord(cmd, rec, err)
				if err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d files could not be reprocessed", failed)
			}
			return nil
		},
	}
}

func newMismatchedForceCmd(g *globalFlags) *cobra.Command {
	var (
		as   string
		lang string
	)

	forceCmd := &cobra.Command{
		Use:   "force <file>",
		Short: "Place a file in a category without looking it up",
		Long: `Move a mismatched file into the chosen library using the title and year parsed
from its name. Use --lang to route it into a split language folder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, ok := core.ParseCategory(as)
			if !ok {
				return fmt.Errorf("--as must be one of movie, tv, anime-movie, anime-series (got %q)", as)
			}

			a, err := newApp(cmd, g, offline)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.sorter.Force(cmd.Context(), args[0], category, lang)
			printRecord(cmd, rec, err)
			return err
		},
	}

	forceCmd.Flags().StringVar(&as, "as", "", "Category: movie, tv, anime-movie or anime-series")
	forceCmd.Flags().StringVar(&lang, "lang", "", "Language code or name for split libraries (e.g. fr)")
	_ = forceCmd.MarkFlagRequired("as")
	return forceCmd
}

func newMismatchedDeleteCmd(g *globalFlags) *cobra.Command {
	var yes bool

	deleteCmd := &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a mismatched file and its sidecars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, offline)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !yes && !a.cfg.DryRun {
				fmt.Fprintf(out, "Delete %s and its sidecars? [y/N] ", args[0])
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if reply := strings.ToLower(strings.TrimSpace(answer)); reply != "y" && reply != "yes" {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			removed, err := a.sorter.Delete(args[0])
			verb := "Deleted"
			if a.cfg.DryRun {
				verb = "Would delete"
			}
			for _, path := range removed {
				fmt.Fprintf(out, "%s %s\n", verb, path)
			}
			return err
		},
	}

	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return deleteCmd
}

func printRecord(cmd *cobra.Command, rec core.Record, err error) {
	out := cmd.OutOrStdout()
	name := filepath.Base(rec.Source)
	switch {
	case err != nil:
		fmt.Fprintf(out, "%s: %v\n", name, err)
	case rec.Outcome == core.OutcomeSkipped:
		fmt.Fprintf(out, "%s: %s (%s)\n", name, rec.Outcome, rec.Reason)
	default:
		fmt.Fprintf(out, "%s: %s → %s\n", name, rec.Outcome, rec.Destination)
	}
}
