package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/spf13/cobra"
)

// probeQuery is a title every provider knows.
var probeQuery = provider.Query{Title: "The Matrix", Year: 1999}

func newProvidersCmd(g *globalFlags) *cobra.Command {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect metadata providers",
	}

	providersCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Check every configured provider with a known title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := log.NewLogger(log.LoggerOptions{Level: cfg.LogLevel, Verbose: g.verbose})
			if err != nil {
				return err
			}
			defer logger.Sync()

			registry, _ := buildRegistry(cfg, logger.Named("providers"))
			rows, failed := testProviders(cmd.Context(), registry, cfg.Providers, cfg.RequestTimeout)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Status", "Detail"}, rows, nil))
			if failed > 0 {
				return fmt.Errorf("%d providers failed", failed)
			}
			return nil
		},
	})
	return providersCmd
}

// testProviders searches probeQuery on each named provider in order.
func testProviders(ctx context.Context, registry *provider.Registry, names []string, timeout time.Duration) ([][]string, int) {
	var (
		rows   [][]string
		failed int
	)
	for _, name := range names {
		p, ok := registry.Get(name)
		if !ok {
			rows = append(rows, []string{name, "unknown", "no such provider"})
			failed++
			continue
		}
		if !registry.IsEnabled(name) {
			rows = append(rows, []string{name, "disabled", "missing or rejected api key"})
			failed++
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		candidates, err := p.Search(callCtx, probeQuery)
		cancel()

		switch {
		case err != nil:
			rows = append(rows, []string{name, "error", err.Error()})
			failed++
		case len(candidates) == 0:
			rows = append(rows, []string{name, "error", "no results for " + probeQuery.Title})
			failed++
		default:
			c := candidates[0]
			rows = append(rows, []string{name, "ok", fmt.Sprintf("%s (%d) in %s", c.Title, c.Year, time.Since(start).Round(time.Millisecond))})
		}
	}
	return rows, failed
}
