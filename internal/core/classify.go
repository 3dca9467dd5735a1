package core

import (
	"context"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Category is the library section a file belongs to.
type Category string

const (
	CategoryNone        Category = ""
	CategoryMovie       Category = "movie"
	CategoryTVSeries    Category = "tv"
	CategoryAnimeMovie  Category = "anime-movie"
	CategoryAnimeSeries Category = "anime-series"
)

// Categories lists every placement category.
var Categories = []Category{CategoryMovie, CategoryTVSeries, CategoryAnimeMovie, CategoryAnimeSeries}

// ParseCategory accepts the category names used on the command line.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return CategoryNone, false
}

// IsSeries reports whether the category uses the show/season layout.
func (c Category) IsSeries() bool {
	return c == CategoryTVSeries || c == CategoryAnimeSeries
}

// Classification is the category of a confident match plus the language tag
// used for split routing.
type Classification struct {
	Category Category
	Language string
}

// Classifier maps confident matches to categories.
type Classifier struct {
	lookup provider.AnimeLookup
	logger *zap.Logger
}

// NewClassifier creates a classifier. lookup may be nil.
func NewClassifier(lookup provider.AnimeLookup, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{lookup: lookup, logger: logger}
}

// Classify categorizes a confident verdict. Anime requires a positive
// signal; anything ambiguous lands in the non-anime category.
func (c *Classifier) Classify(ctx context.Context, verdict MatchVerdict, tokens media.ParsedTokens) Classification {
	if !verdict.Confident() || verdict.Candidate == nil {
		return Classification{}
	}
	cand := *verdict.Candidate

	anime := c.isAnime(ctx, cand)
	cls := Classification{Language: LanguageCode(tokens.Language)}
	if cls.Language == "" {
		cls.Language = LanguageCode(cand.PrimaryLanguage())
	}

	switch {
	case cand.IsSeries() && anime:
		cls.Category = CategoryAnimeSeries
	case cand.IsSeries():
		cls.Category = CategoryTVSeries
	case anime:
		cls.Category = CategoryAnimeMovie
	default:
		cls.Category = CategoryMovie
	}
	return cls
}

func (c *Classifier) isAnime(ctx context.Context, cand provider.Candidate) bool {
	switch cand.AnimeHint {
	case provider.AnimeYes:
		return true
	case provider.AnimeNo:
		return false
	}

	if !cand.HasGenre("Animation") {
		return false
	}
	if cand.FromCountry("Japan") || cand.FromCountry("JP") {
		return true
	}
	if c.lookup == nil {
		return false
	}

	hint, err := c.lookup.LookupAnime(ctx, cand.Title)
	if err != nil {
		c.logger.Warn("anime lookup failed", zap.String("title", cand.Title), zap.Error(err))
		return false
	}
	return hint == provider.AnimeYes
}

// knownLanguages are matched by English name when a provider reports
// "Japanese" rather than "ja".
var knownLanguages = []language.Tag{
	language.English, language.French, language.German, language.Italian,
	language.Spanish, language.Portuguese, language.Japanese, language.Korean,
	language.Chinese, language.Russian, language.Hindi, language.Dutch,
	language.Swedish, language.Danish, language.Norwegian, language.Finnish,
	language.Polish, language.Turkish, language.Arabic, language.Thai,
}

// LanguageCode normalizes a BCP 47 tag or an English language name to its
// base ISO 639-1 code. Unknown input yields "".
func LanguageCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return ""
	}
	if tag, err := language.Parse(s); err == nil {
		base, conf := tag.Base()
		if conf != language.No && base.String() != "und" {
			return base.String()
		}
	}
	namer := display.English.Languages()
	for _, tag := range knownLanguages {
		if strings.EqualFold(namer.Name(tag), s) {
			base, _ := tag.Base()
			return base.String()
		}
	}
	return ""
}

// LanguageName returns the English name for a language code ("fr" -> "French").
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
