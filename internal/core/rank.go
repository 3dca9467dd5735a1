package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeTitle folds a title for comparison: accents removed, case folded,
// punctuation dropped and "&" read as "and".
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, title)
	if err != nil {
		stripped = title
	}
	stripped = folder.String(strings.ReplaceAll(stripped, "&", " and "))

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// "Schindler's" and "Schindlers" should compare equal
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ranker orders candidates so the best one comes first.
type Ranker interface {
	Rank(tokens media.ParsedTokens, candidates []provider.Candidate) []provider.Candidate
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(media.ParsedTokens, []provider.Candidate) []provider.Candidate

func (f RankerFunc) Rank(tokens media.ParsedTokens, candidates []provider.Candidate) []provider.Candidate {
	return f(tokens, candidates)
}

// TitleYearRanker puts exact (normalized) title matches before fuzzy ones.
// A matching year breaks ties, then a media type that agrees with the
// filename. Provider order is kept otherwise.
type TitleYearRanker struct{}

func (TitleYearRanker) Rank(tokens media.ParsedTokens, candidates []provider.Candidate) []provider.Candidate {
	want := NormalizeTitle(tokens.Title)
	wantType := expectedType(tokens)
	score := func(c provider.Candidate) int {
		s := 0
		if NormalizeTitle(c.Title) == want {
			s += 4
		}
		if tokens.HasYear() && c.Year == tokens.Year {
			s += 2
		}
		if c.MediaType == wantType {
			s++
		}
		return s
	}

	ranked := make([]provider.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	return ranked
}
