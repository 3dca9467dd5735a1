package core

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/media"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlannedMove is a single source to target rename.
type PlannedMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DestinationPlan describes where an entry goes. A plan with Skip set
// leaves the entry in place.
type DestinationPlan struct {
	Source     string
	Dir        string
	FileName   string
	Category   Category
	Fallback   bool
	Skip       bool
	SkipReason string
	Sidecars   []PlannedMove
}

// Target returns the full destination path of the primary file.
func (p DestinationPlan) Target() string {
	if p.Skip {
		return ""
	}
	return filepath.Join(p.Dir, p.FileName)
}

// Moves lists every move in execution order, primary file first.
func (p DestinationPlan) Moves() []PlannedMove {
	if p.Skip {
		return nil
	}
	moves := make([]PlannedMove, 0, 1+len(p.Sidecars))
	moves = append(moves, PlannedMove{From: p.Source, To: p.Target()})
	return append(moves, p.Sidecars...)
}

// Planner turns verdicts into destination plans. It performs no I/O, so the
// same inputs always give the same plan.
type Planner struct {
	cfg *config.Config
}

// NewPlanner creates a planner over an immutable configuration.
func NewPlanner(cfg *config.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan decides the destination of entry. Confident verdicts are placed by
// category; anything else follows the fallback policy.
func (p *Planner) Plan(entry RawEntry, tokens media.ParsedTokens, verdict MatchVerdict, cls Classification) DestinationPlan {
	if verdict.Confident() && verdict.Candidate != nil {
		vars := NameVars{Title: verdict.Candidate.Title, Year: verdict.Candidate.Year, Season: seasonOf(tokens)}
		if vars.Year == 0 {
			vars.Year = tokens.Year
		}
		return p.place(entry, cls.Category, cls.Language, vars, false)
	}

	if p.cfg.CleanupInPlace {
		return skipPlan(entry, "no confident match; fallback moves are disabled in cleanup mode")
	}

	switch p.cfg.FallbackPolicy {
	case config.FallbackIgnore:
		return skipPlan(entry, verdict.Reason)
	case config.FallbackTV:
		return p.PlanForced(entry, tokens, CategoryTVSeries, "")
	case config.FallbackAnime:
		return p.PlanForced(entry, tokens, CategoryAnimeSeries, "")
	default:
		return p.mismatched(entry)
	}
}

// PlanForced places entry in category using only its parsed tokens. It is
// used by the tv and anime fallback policies and by manual placement.
func (p *Planner) PlanForced(entry RawEntry, tokens media.ParsedTokens, category Category, lang string) DestinationPlan {
	vars := NameVars{Title: displayTitle(tokens.Title), Year: tokens.Year, Season: seasonOf(tokens)}
	if lang == "" {
		lang = LanguageCode(tokens.Language)
	}
	return p.place(entry, category, lang, vars, true)
}

func (p *Planner) place(entry RawEntry, category Category, lang string, vars NameVars, fallback bool) DestinationPlan {
	if !p.enabled(category) {
		return skipPlan(entry, fmt.Sprintf("%s sorting is disabled", category))
	}

	root := p.root(entry, category, lang)
	if root == "" {
		return skipPlan(entry, fmt.Sprintf("no directory configured for %s", category))
	}

	plan := DestinationPlan{Source: entry.Path, Category: category, Fallback: fallback}
	base := filepath.Base(entry.Path)

	if category.IsSeries() {
		plan.Dir = filepath.Join(root, RenderName(p.cfg.ShowFolder, vars), RenderName(p.cfg.SeasonFolder, vars))
		plan.FileName = SanitizeName(base)
		plan.Sidecars = keepNames(plan.Dir, entry.Sidecars)
		return plan
	}

	stem := RenderName(p.cfg.MovieFile, vars)
	plan.Dir = filepath.Join(root, RenderName(p.cfg.MovieFolder, vars))
	plan.FileName = stem + filepath.Ext(base)

	primaryStem := media.Stem(entry.Path)
	for _, side := range entry.Sidecars {
		plan.Sidecars = append(plan.Sidecars, PlannedMove{
			From: side,
			To:   filepath.Join(plan.Dir, stem+media.SidecarSuffix(side, primaryStem)),
		})
	}
	return plan
}

func (p *Planner) mismatched(entry RawEntry) DestinationPlan {
	dir := p.cfg.MismatchedDir
	if dir == "" {
		dir = filepath.Join(p.cfg.SourceDir, config.MismatchedDirName)
	}
	return DestinationPlan{
		Source:   entry.Path,
		Dir:      dir,
		FileName: filepath.Base(entry.Path),
		Fallback: true,
		Sidecars: keepNames(dir, entry.Sidecars),
	}
}

// root picks the library folder, applying cleanup mode and language splits.
func (p *Planner) root(entry RawEntry, category Category, lang string) string {
	if p.cfg.CleanupInPlace {
		return filepath.Dir(entry.Path)
	}

	var root string
	switch category {
	case CategoryMovie:
		root = p.cfg.MoviesDir
	case CategoryTVSeries:
		root = p.cfg.TVShowsDir
	case CategoryAnimeMovie:
		root = p.cfg.AnimeMoviesDir
	case CategoryAnimeSeries:
		root = p.cfg.AnimeSeriesDir
	}
	if root == "" || lang == "" || !slices.Contains(p.cfg.SplitLanguages, lang) {
		return root
	}

	if dir := p.cfg.LanguageDirs[lang]; dir != "" && category == CategoryMovie {
		return dir
	}
	return filepath.Join(root, SanitizeName(LanguageName(lang)))
}

func (p *Planner) enabled(category Category) bool {
	switch category {
	case CategoryMovie:
		return p.cfg.MoviesEnabled
	case CategoryTVSeries:
		return p.cfg.TVShowsEnabled
	case CategoryAnimeMovie:
		return p.cfg.AnimeMoviesEnabled
	case CategoryAnimeSeries:
		return p.cfg.AnimeSeriesEnabled
	default:
		return false
	}
}

func skipPlan(entry RawEntry, reason string) DestinationPlan {
	return DestinationPlan{Source: entry.Path, Skip: true, SkipReason: reason}
}

func keepNames(dir string, sidecars []string) []PlannedMove {
	var moves []PlannedMove
	for _, side := range sidecars {
		moves = append(moves, PlannedMove{From: side, To: filepath.Join(dir, SanitizeName(filepath.Base(side)))})
	}
	return moves
}

func seasonOf(tokens media.ParsedTokens) int {
	if tokens.Season > 0 {
		return tokens.Season
	}
	return 1
}

// displayTitle title-cases names that arrived all lower case ("show name").
func displayTitle(title string) string {
	if title != strings.ToLower(title) {
		return title
	}
	return cases.Title(language.English).String(title)
}
