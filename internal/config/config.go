package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (SORTMEDOWN_SOURCE_DIR)
const EnvPrefix = "SORTMEDOWN"

// Fallback policies for files that could not be matched confidently
const (
	FallbackMismatched = "mismatched"
	FallbackTV         = "tv"
	FallbackAnime      = "anime"
	FallbackIgnore     = "ignore"
)

// Movable checks applied before a file is moved
const (
	MovableOSLock = "oslock"
	MovableStable = "stable"
	MovableProbe  = "probe"
)

// MismatchedDirName is created under the source directory when no explicit
// mismatched directory is configured.
const MismatchedDirName = "_Mismatched"

// Config is the complete, immutable run configuration.
type Config struct {
	// Library layout
	SourceDir      string            `json:"source_dir" mapstructure:"source_dir" validate:"required"`
	MoviesDir      string            `json:"movies_dir" mapstructure:"movies_dir" validate:"required_if=MoviesEnabled true CleanupInPlace false"`
	TVShowsDir     string            `json:"tv_shows_dir" mapstructure:"tv_shows_dir" validate:"required_if=TVShowsEnabled true CleanupInPlace false"`
	AnimeMoviesDir string            `json:"anime_movies_dir" mapstructure:"anime_movies_dir" validate:"required_if=AnimeMoviesEnabled true CleanupInPlace false"`
	AnimeSeriesDir string            `json:"anime_series_dir" mapstructure:"anime_series_dir" validate:"required_if=AnimeSeriesEnabled true CleanupInPlace false"`
	MismatchedDir  string            `json:"mismatched_dir" mapstructure:"mismatched_dir"`
	LanguageDirs   map[string]string `json:"language_dirs" mapstructure:"language_dirs" validate:"dive,keys,len=2,endkeys,required"`
	SplitLanguages []string          `json:"split_languages" mapstructure:"split_languages" validate:"dive,len=2"`

	// French mode is the original shortcut for SplitLanguages=[fr] + LanguageDirs[fr]
	FrenchMode      bool   `json:"french_mode" mapstructure:"french_mode"`
	FrenchMoviesDir string `json:"french_movies_dir" mapstructure:"french_movies_dir"`

	// Category toggles
	MoviesEnabled      bool `json:"movies_enabled" mapstructure:"movies_enabled"`
	TVShowsEnabled     bool `json:"tv_shows_enabled" mapstructure:"tv_shows_enabled"`
	AnimeMoviesEnabled bool `json:"anime_movies_enabled" mapstructure:"anime_movies_enabled"`
	AnimeSeriesEnabled bool `json:"anime_series_enabled" mapstructure:"anime_series_enabled"`

	// Naming templates
	MovieFolder  string `json:"movie_folder" mapstructure:"movie_folder" validate:"required"`
	MovieFile    string `json:"movie_file" mapstructure:"movie_file" validate:"required"`
	ShowFolder   string `json:"show_folder" mapstructure:"show_folder" validate:"required"`
	SeasonFolder string `json:"season_folder" mapstructure:"season_folder" validate:"required"`

	// Behavior
	FallbackPolicy string        `json:"fallback_policy" mapstructure:"fallback_policy" validate:"oneof=mismatched tv anime ignore"`
	CleanupInPlace bool          `json:"cleanup_in_place" mapstructure:"cleanup_in_place"`
	Watch          bool          `json:"watch" mapstructure:"watch"`
	WatchInterval  time.Duration `json:"watch_interval" mapstructure:"watch_interval" validate:"gt=0"`
	WatchDebounce  time.Duration `json:"watch_debounce" mapstructure:"watch_debounce" validate:"gte=0"`
	DryRun         bool          `json:"dry_run" mapstructure:"dry_run"`
	DeepScan       bool          `json:"deep_scan" mapstructure:"deep_scan"`
	SweepEmptyDirs bool          `json:"sweep_empty_dirs" mapstructure:"sweep_empty_dirs"`

	// Parsing
	StripTokens       []string `json:"strip_tokens" mapstructure:"strip_tokens"`
	MinYear           int      `json:"min_year" mapstructure:"min_year" validate:"gte=1800,lte=2100"`
	VideoExtensions   []string `json:"video_extensions" mapstructure:"video_extensions" validate:"min=1,dive,startswith=."`
	SidecarExtensions []string `json:"sidecar_extensions" mapstructure:"sidecar_extensions" validate:"dive,startswith=."`

	// Providers
	Providers      []string      `json:"providers" mapstructure:"providers" validate:"min=1,dive,oneof=omdb tmdb tvdb anilist"`
	OMDbAPIKey     string        `json:"omdb_api_key" mapstructure:"omdb_api_key"`
	TMDBAPIKey     string        `json:"tmdb_api_key" mapstructure:"tmdb_api_key"`
	TMDBLanguage   string        `json:"tmdb_language" mapstructure:"tmdb_language"`
	TVDBAPIKey     string        `json:"tvdb_api_key" mapstructure:"tvdb_api_key"`
	AniListLookup  bool          `json:"anilist_lookup" mapstructure:"anilist_lookup"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
	RequestDelay   time.Duration `json:"request_delay" mapstructure:"request_delay" validate:"gte=0"`
	MaxRetries     int           `json:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay     time.Duration `json:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`
	YearTolerance  int           `json:"year_tolerance" mapstructure:"year_tolerance" validate:"gte=0,lte=5"`
	LookupWorkers  int           `json:"lookup_workers" mapstructure:"lookup_workers" validate:"gte=1,lte=32"`
	CacheEnabled   bool          `json:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTL       time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" validate:"gte=0"`

	// Moving
	MovableCheck string        `json:"movable_check" mapstructure:"movable_check" validate:"oneof=oslock stable probe"`
	StableWindow time.Duration `json:"stable_window" mapstructure:"stable_window" validate:"gte=0"`

	// Logging
	EnableLogging    bool   `json:"enable_logging" mapstructure:"enable_logging"`
	LogRetentionDays int    `json:"log_retention_days" mapstructure:"log_retention_days" validate:"gte=0"`
	LogLevel         string `json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile          string `json:"log_file" mapstructure:"log_file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LanguageDirs:       map[string]string{},
		SplitLanguages:     []string{},
		MoviesEnabled:      true,
		TVShowsEnabled:     true,
		AnimeMoviesEnabled: true,
		AnimeSeriesEnabled: true,
		MovieFolder:        "{title} ({year})",
		MovieFile:          "{title} ({year})",
		ShowFolder:         "{title} ({year})",
		SeasonFolder:       "Season {season}",
		FallbackPolicy:     FallbackMismatched,
		WatchInterval:      15 * time.Minute,
		WatchDebounce:      5 * time.Second,
		DeepScan:           true,
		SweepEmptyDirs:     true,
		StripTokens:        []string{"FRENCH", "TRUEFRENCH", "VOSTFR", "MULTI", "SUBFRENCH"},
		MinYear:            1900,
		VideoExtensions:    []string{".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".ts", ".mpg", ".mpeg"},
		SidecarExtensions:  []string{".srt", ".sub", ".idx", ".ass", ".ssa", ".vtt", ".nfo", ".jpg", ".png"},
		Providers:          []string{"omdb", "tmdb", "tvdb"},
		TMDBLanguage:       "en-US",
		AniListLookup:      true,
		RequestTimeout:     10 * time.Second,
		RequestDelay:       1 * time.Second,
		MaxRetries:         2,
		RetryDelay:         2 * time.Second,
		YearTolerance:      0,
		LookupWorkers:      4,
		CacheEnabled:       true,
		CacheTTL:           7 * 24 * time.Hour,
		MovableCheck:       MovableOSLock,
		StableWindow:       2 * time.Second,
		EnableLogging:      true,
		LogRetentionDays:   30,
		LogLevel:           "info",
	}
}

// StateDir returns ~/.sort-me-down, home of the config, logs and caches
func StateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".sort-me-down"), nil
}

// ConfigPath returns the path to the default config file
func ConfigPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ConfigUnmarshaler is the subset of viper used to build a Config
type ConfigUnmarshaler interface {
	ReadInConfig() error
	Unmarshal(any, ...viper.DecoderConfigOption) error
	ConfigFileUsed() string
}

// NewViper returns a viper instance primed with defaults, the config file at
// path (default location when empty) and SORTMEDOWN_* environment overrides.
// Callers may bind CLI flags on it before calling New.
func NewViper(path string) (*viper.Viper, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(expandHome(path))
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())
	return v, nil
}

// setDefaults registers every field so AutomaticEnv can see it
func setDefaults(v *viper.Viper, cfg *Config) {
	data, _ := json.Marshal(cfg)
	var fields map[string]any
	_ = json.Unmarshal(data, &fields)
	for key := range fields {
		v.SetDefault(key, fields[key])
	}
	// Durations marshal as nanoseconds; register them typed
	v.SetDefault("watch_interval", cfg.WatchInterval)
	v.SetDefault("watch_debounce", cfg.WatchDebounce)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("request_delay", cfg.RequestDelay)
	v.SetDefault("retry_delay", cfg.RetryDelay)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("stable_window", cfg.StableWindow)
}

// New reads the configuration through cu, applies derived settings and
// validates the result. A missing config file is not an error.
func New(cu ConfigUnmarshaler) (*Config, error) {
	if cu.ConfigFileUsed() != "" {
		if err := cu.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Defaults live in viper. Decoding onto DefaultConfig would append the
	// configured lists to the default ones.
	cfg := &Config{}
	if err := cu.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the config file at path
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return New(v)
}

// Normalize makes every configured path absolute and folds the French
// shortcut into the generic language split settings.
func (cfg *Config) Normalize() {
	for _, p := range []*string{&cfg.SourceDir, &cfg.MoviesDir, &cfg.TVShowsDir, &cfg.AnimeMoviesDir, &cfg.AnimeSeriesDir, &cfg.MismatchedDir, &cfg.FrenchMoviesDir, &cfg.LogFile} {
		*p = absPath(*p)
	}

	if cfg.MismatchedDir == "" && cfg.SourceDir != "" {
		cfg.MismatchedDir = filepath.Join(cfg.SourceDir, MismatchedDirName)
	}

	if cfg.LanguageDirs == nil {
		cfg.LanguageDirs = map[string]string{}
	}
	for lang, dir := range cfg.LanguageDirs {
		cfg.LanguageDirs[lang] = absPath(dir)
	}

	langs := make([]string, 0, len(cfg.SplitLanguages)+1)
	for _, l := range cfg.SplitLanguages {
		langs = appendUnique(langs, strings.ToLower(strings.TrimSpace(l)))
	}
	if cfg.FrenchMode {
		langs = appendUnique(langs, "fr")
		if cfg.FrenchMoviesDir != "" {
			cfg.LanguageDirs["fr"] = cfg.FrenchMoviesDir
		}
	}
	cfg.SplitLanguages = langs

	for i, ext := range cfg.VideoExtensions {
		cfg.VideoExtensions[i] = strings.ToLower(ext)
	}
	for i, ext := range cfg.SidecarExtensions {
		cfg.SidecarExtensions[i] = strings.ToLower(ext)
	}
}

// Save writes the configuration to path (default location when empty)
func (cfg *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LibraryDirs lists the configured destination folders, the mismatched
// folder included. Language folders follow in language order.
func (cfg *Config) LibraryDirs() []string {
	var dirs []string
	for _, dir := range []string{cfg.MismatchedDir, cfg.MoviesDir, cfg.TVShowsDir, cfg.AnimeMoviesDir, cfg.AnimeSeriesDir} {
		if dir != "" {
			dirs = appendUnique(dirs, filepath.Clean(dir))
		}
	}
	langs := slices.Sorted(maps.Keys(cfg.LanguageDirs))
	for _, lang := range langs {
		if dir := cfg.LanguageDirs[lang]; dir != "" {
			dirs = appendUnique(dirs, filepath.Clean(dir))
		}
	}
	return dirs
}

// Masked returns a copy with API keys hidden, for display
func (cfg *Config) Masked() *Config {
	c := *cfg
	c.OMDbAPIKey = mask(c.OMDbAPIKey)
	c.TMDBAPIKey = mask(c.TMDBAPIKey)
	c.TVDBAPIKey = mask(c.TVDBAPIKey)
	return &c
}

// APIKey returns the configured key for a provider name
func (cfg *Config) APIKey(providerName string) string {
	switch providerName {
	case "omdb":
		return cfg.OMDbAPIKey
	case "tmdb":
		return cfg.TMDBAPIKey
	case "tvdb":
		return cfg.TVDBAPIKey
	default:
		return ""
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// absPath expands ~ and resolves path against the working directory.
// Empty stays empty so unset directories remain unset.
func absPath(path string) string {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
