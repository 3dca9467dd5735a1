package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Sort continuously as new files arrive",
		Long: `Run a pass at start, then again whenever files appear in the source directory
or the watch interval elapses. Only one watcher may run per machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, withLookups, "watch")
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.CleanupInPlace {
				return errors.New("watch cannot run in cleanup-in-place mode")
			}

			stateDir, err := config.StateDir()
			if err != nil {
				return err
			}
			opts := watchOptions(a.cfg, stateDir, a.logger.Named("watch"))
			sched := watch.New(a.sorter, opts)

			done := make(chan error, 1)
			go func() { done <- sched.Run(cmd.Context()) }()

			out := cmd.OutOrStdout()
			for ev := range sched.Events() {
				// Idle passes are logged by the sorter only
				if ev.Report == nil || ev.Report.Counts.Total() == 0 {
					continue
				}
				fmt.Fprintf(out, "Pass finished (%s) at %s\n", ev.Reason, ev.At.Format("15:04:05"))
				writeReport(out, *ev.Report, g.verbose)
				if ev.Err != nil {
					a.logger.Warn("pass failed", zap.Error(ev.Err))
				}
			}

			err = <-done
			if errors.Is(err, watch.ErrAlreadyRunning) {
				return fmt.Errorf("%w (lock %s)", err, opts.LockPath)
			}
			return err
		},
	}

	watchCmd.Flags().Bool("fr", false, "Route French titles to the French library folders")
	watchCmd.Flags().Duration("watch-interval", 0, "Time between passes when nothing changes (default from config, 15m)")
	return watchCmd
}

// watchOptions ignores every library folder so moves into folders nested
// under the source do not schedule another pass.
func watchOptions(cfg *config.Config, stateDir string, logger *zap.Logger) watch.Options {
	return watch.Options{
		Source:   cfg.SourceDir,
		Interval: cfg.WatchInterval,
		Debounce: cfg.WatchDebounce,
		Ignore:   cfg.LibraryDirs(),
		LockPath: filepath.Join(stateDir, "watch.lock"),
		Logger:   logger,
	}
}
