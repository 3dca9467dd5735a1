package core

import (
	"testing"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/google/go-cmp/cmp"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Amélie", "amelie"},
		{"Schindler's List", "schindlers list"},
		{"Fast & Furious", "fast and furious"},
		{"  Spider-Man:  Homecoming ", "spider man homecoming"},
		{"STRASSE", "strasse"},
		{"Pokémon: The Movie 2000", "pokemon the movie 2000"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleYearRanker(t *testing.T) {
	candidates := []provider.Candidate{
		{ID: "fuzzy-year", Title: "The Thing from Another World", Year: 1982},
		{ID: "exact-other-year", Title: "The Thing", Year: 2011},
		{ID: "exact-year", Title: "The Thing", Year: 1982},
		{ID: "fuzzy", Title: "Thing", Year: 1951},
	}

	tests := []struct {
		name   string
		tokens media.ParsedTokens
		want   []string
	}{
		{"exact then year", media.ParsedTokens{Title: "the thing", Year: 1982}, []string{"exact-year", "exact-other-year", "fuzzy-year", "fuzzy"}},
		{"no year keeps provider order", media.ParsedTokens{Title: "The Thing"}, []string{"exact-other-year", "exact-year", "fuzzy-year", "fuzzy"}},
		{"no exact match", media.ParsedTokens{Title: "Something", Year: 1951}, []string{"fuzzy", "fuzzy-year", "exact-other-year", "exact-year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range (TitleYearRanker{}).Rank(tt.tokens, candidates) {
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if candidates[0].ID != "fuzzy-year" {
		t.Error("Rank() reordered its input slice")
	}
}

func TestTitleYearRankerPrefersAgreeingType(t *testing.T) {
	candidates := []provider.Candidate{
		{ID: "series", Title: "Fargo", Year: 1996, MediaType: provider.MediaTypeSeries},
		{ID: "movie", Title: "Fargo", Year: 1996, MediaType: provider.MediaTypeMovie},
		{ID: "movie-other-year", Title: "Fargo", Year: 2014, MediaType: provider.MediaTypeMovie},
	}

	tests := []struct {
		name   string
		tokens media.ParsedTokens
		want   []string
	}{
		{"movie file", media.ParsedTokens{Title: "Fargo", Year: 1996}, []string{"movie", "series", "movie-other-year"}},
		{"episode file", media.ParsedTokens{Title: "Fargo", Year: 1996, SeriesLikely: true}, []string{"series", "movie", "movie-other-year"}},
		{"year outranks type", media.ParsedTokens{Title: "Fargo", Year: 2014, SeriesLikely: true}, []string{"movie-other-year", "series", "movie"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range (TitleYearRanker{}).Rank(tt.tokens, candidates) {
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTitleYearRankerAvoidsTypeMismatch(t *testing.T) {
	tokens := media.ParsedTokens{Title: "Fargo", Year: 1996}
	ranked := (TitleYearRanker{}).Rank(tokens, []provider.Candidate{
		{Provider: "tvdb", Title: "Fargo", Year: 1996, MediaType: provider.MediaTypeSeries},
		{Provider: "omdb", Title: "Fargo", Year: 1996, MediaType: provider.MediaTypeMovie},
	})

	v := ConflictResolver{}.Evaluate(tokens, ranked)
	if v.Kind != VerdictConfident {
		t.Fatalf("Evaluate() = %v (%s), want Confident", v.Kind, v.Reason)
	}
	if v.Candidate.MediaType != provider.MediaTypeMovie {
		t.Errorf("Evaluate() picked %s candidate, want movie", v.Candidate.MediaType)
	}
}
