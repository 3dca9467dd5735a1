package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dryRun     bool
	verbose    bool
	logFile    string
	source     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "sort-me-down",
		Short: "Sort downloaded media into a Movies / TV / Anime library",
		Long: `sort-me-down watches a downloads folder and moves each video file into the
right library folder, renamed after its real title and year.

Titles are looked up against OMDb, TMDB, TVDB and AniList. Files that cannot be
matched confidently go to a mismatched folder for review instead of being guessed.
Every move is journaled and can be reverted with "sort-me-down undo".`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default ~/.sort-me-down/config.json)")
	pf.BoolVarP(&g.dryRun, "dry-run", "n", false, "Plan moves without touching the filesystem")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	pf.StringVar(&g.source, "source", "", "Override the source directory")

	rootCmd.AddCommand(
		newSortCmd(g),
		newWatchCmd(g),
		newUndoCmd(g),
		newMismatchedCmd(g),
		newConfigCmd(g),
		newProvidersCmd(g),
	)
	return rootCmd
}

// Execute runs the root command. Interrupts cancel the command context so a
// running pass stops between files.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
