package provider

import (
	"context"
	"strings"
)

// MediaType represents the type of media a candidate describes
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// AnimeHint records what a provider knows about whether a title is anime
type AnimeHint string

const (
	AnimeUnknown AnimeHint = "unknown"
	AnimeYes     AnimeHint = "anime"
	AnimeNo      AnimeHint = "not_anime"
)

// Provider is the interface every metadata source implements
type Provider interface {
	Name() string
	Search(ctx context.Context, query Query) ([]Candidate, error)
}

// Configurable providers accept settings (API keys, languages) before use
type Configurable interface {
	Configure(config map[string]interface{}) error
}

// AnimeLookup answers whether a title is anime. It is consulted when a
// candidate does not carry its own hint.
type AnimeLookup interface {
	LookupAnime(ctx context.Context, title string) (AnimeHint, error)
}

// Query is what the resolver sends to each provider
type Query struct {
	Title        string
	Year         int
	SeriesLikely bool
}

// Candidate is one search result returned by a provider
type Candidate struct {
	Provider  string
	Title     string
	Year      int
	MediaType MediaType
	Language  string
	Country   string
	Genres    []string
	ID        string
	AnimeHint AnimeHint
}

// IsSeries reports whether the candidate describes episodic content
func (c Candidate) IsSeries() bool {
	return c.MediaType == MediaTypeSeries
}

// HasGenre reports whether any genre matches name, ignoring case
func (c Candidate) HasGenre(name string) bool {
	for _, g := range c.Genres {
		if strings.EqualFold(strings.TrimSpace(g), name) {
			return true
		}
	}
	return false
}

// FromCountry reports whether the comma separated country list contains
// country. Codes and names both work ("JP", "Japan").
func (c Candidate) FromCountry(country string) bool {
	for _, part := range strings.Split(c.Country, ",") {
		if strings.EqualFold(strings.TrimSpace(part), country) {
			return true
		}
	}
	return false
}

// PrimaryLanguage returns the first entry of the language list
func (c Candidate) PrimaryLanguage() string {
	first, _, _ := strings.Cut(c.Language, ",")
	return strings.TrimSpace(first)
}
