package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/Digital-Shane/sort-me-down/internal/provider/anilist"
	"github.com/Digital-Shane/sort-me-down/internal/provider/omdb"
	"github.com/Digital-Shane/sort-me-down/internal/provider/tmdb"
	"github.com/Digital-Shane/sort-me-down/internal/provider/tvdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// flagKeys maps command line flags onto config keys. Only flags that were
// set on the command line override the file and environment.
var flagKeys = map[string]string{
	"dry-run":          "dry_run",
	"log-file":         "log_file",
	"source":           "source_dir",
	"fr":               "french_mode",
	"cleanup-in-place": "cleanup_in_place",
	"watch-interval":   "watch_interval",
}

// newViper returns the config viper with cmd's flags bound.
func (g *globalFlags) newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v, err := config.NewViper(g.configPath)
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}
	return v, nil
}

// loadConfig reads, normalizes and validates the configuration.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := g.newViper(cmd)
	if err != nil {
		return nil, err
	}
	return config.New(v)
}

// app holds the components wired for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	journal   *log.Journal
	resolver  *core.Resolver
	sorter    *core.Sorter
	cachePath string
}

// appMode selects whether providers are contacted while wiring.
type appMode int

const (
	withLookups appMode = iota
	offline
)

// newApp loads the configuration and wires the pipeline. command names the
// journal session for passes run through the sorter. Offline apps have no
// providers and never touch the network.
func newApp(cmd *cobra.Command, g *globalFlags, mode appMode, command ...string) (*app, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(log.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile, Verbose: g.verbose})
	if err != nil {
		return nil, err
	}

	stateDir, err := config.StateDir()
	if err != nil {
		return nil, err
	}

	journal := log.NewJournal(filepath.Join(stateDir, "logs"), cfg.EnableLogging)
	if err := journal.Cleanup(cfg.LogRetentionDays); err != nil {
		logger.Warn("journal cleanup failed", zap.Error(err))
	}

	var (
		providers []provider.Provider
		lookup    provider.AnimeLookup
	)
	if mode == withLookups {
		var registry *provider.Registry
		registry, lookup = buildRegistry(cfg, logger)
		providers = registry.Ordered(cfg.Providers)
		if len(providers) == 0 {
			logger.Warn("no metadata provider is usable; every file will take the fallback path")
		}
	}

	opts := []core.ResolverOption{
		core.WithTimeout(cfg.RequestTimeout),
		core.WithRetries(cfg.MaxRetries, cfg.RetryDelay),
		core.WithRequestDelay(cfg.RequestDelay),
		core.WithResolverLogger(logger.Named("resolver")),
	}
	a := &app{cfg: cfg, logger: logger, journal: journal}
	if cfg.CacheEnabled {
		opts = append(opts, core.WithCache(core.NewResultCache(cfg.CacheTTL)))
		a.cachePath = filepath.Join(stateDir, "cache", "lookups.gob")
	}
	a.resolver = core.NewResolver(providers, opts...)
	if err := a.resolver.LoadCache(a.cachePath); err != nil {
		logger.Warn("lookup cache ignored", zap.Error(err))
	}

	executor := core.NewExecutor(cfg.DryRun,
		core.WithMovable(core.NewMovable(cfg.MovableCheck, cfg.StableWindow)),
		core.WithJournal(journal),
		core.WithExecutorLogger(logger.Named("executor")),
	)
	a.sorter = core.NewSorter(cfg, a.resolver, core.NewClassifier(lookup, logger.Named("classifier")), executor,
		core.WithSession(journal, command...),
		core.WithSorterLogger(logger.Named("sorter")),
	)
	return a, nil
}

// Close persists the lookup cache and flushes logs.
func (a *app) Close() {
	if a.cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(a.cachePath), 0755); err == nil {
			if err := a.resolver.SaveCache(a.cachePath); err != nil {
				a.logger.Warn("lookup cache not saved", zap.Error(err))
			}
		}
	}
	_ = a.logger.Sync()
}

// providerPriority orders providers when the config names none.
var providerPriority = map[string]int{
	"omdb":    100,
	"tmdb":    90,
	"tvdb":    80,
	"anilist": 70,
}

// buildRegistry registers every known provider and enables those the config
// names and can authenticate. It also returns the anime lookup for the
// classifier, nil when disabled.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*provider.Registry, provider.AnimeLookup) {
	registry := provider.NewRegistry()
	ani := anilist.New()

	all := map[string]provider.Provider{
		"omdb":    omdb.New(),
		"tmdb":    tmdb.New(),
		"tvdb":    tvdb.New(),
		"anilist": ani,
	}
	for name, p := range all {
		_ = registry.Register(name, p, providerPriority[name])
	}

	for _, name := range cfg.Providers {
		p, ok := registry.Get(name)
		if !ok {
			continue
		}
		if _, configurable := p.(provider.Configurable); configurable {
			key := cfg.APIKey(name)
			if key == "" {
				logger.Warn("provider skipped: no api key", zap.String("provider", name))
				continue
			}
			settings := map[string]interface{}{"api_key": key, "timeout": cfg.RequestTimeout}
			if name == "tmdb" {
				settings["language"] = cfg.TMDBLanguage
			}
			if err := registry.Configure(name, settings); err != nil {
				logger.Warn("provider skipped", zap.String("provider", name), zap.Error(err))
				continue
			}
		}
		if err := registry.Enable(name); err != nil {
			logger.Warn("provider skipped", zap.String("provider", name), zap.Error(err))
		}
	}

	if !cfg.AniListLookup {
		return registry, nil
	}
	return registry, ani
}
