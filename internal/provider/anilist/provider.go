// Package anilist queries the AniList GraphQL API. It serves both as a search
// provider and as the anime lookup consulted by the classifier.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
)

const (
	providerName = "anilist"
	// DefaultURL is the public GraphQL endpoint
	DefaultURL = "https://graphql.anilist.co"
)

const mediaQuery = `query ($search: String, $year: Int) {
  Media(search: $search, seasonYear: $year, type: ANIME) {
    id
    title { romaji english native }
    format
    genres
    seasonYear
    countryOfOrigin
  }
}`

// Provider implements provider.Provider and provider.AnimeLookup for AniList.
type Provider struct {
	httpClient *http.Client
	baseURL    string
}

// New creates an AniList provider. AniList needs no API key.
func New() *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultURL,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

type media struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Format          string   `json:"format"`
	Genres          []string `json:"genres"`
	SeasonYear      int      `json:"seasonYear"`
	CountryOfOrigin string   `json:"countryOfOrigin"`
}

type graphQLResponse struct {
	Data struct {
		Media *media `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Search returns the best AniList match as an anime candidate.
func (p *Provider) Search(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	m, err := p.fetch(ctx, query.Title, query.Year)
	if err != nil {
		return nil, err
	}

	var mediaType provider.MediaType
	switch strings.ToUpper(m.Format) {
	case "MOVIE":
		mediaType = provider.MediaTypeMovie
	case "TV", "TV_SHORT", "ONA", "OVA", "SPECIAL":
		mediaType = provider.MediaTypeSeries
	default:
		return nil, provider.NotFound(providerName, fmt.Sprintf("unsupported format %q for %s", m.Format, query.Title))
	}

	title := m.Title.English
	if title == "" {
		title = m.Title.Romaji
	}

	country := m.CountryOfOrigin
	if country == "" {
		country = "JP"
	}

	return []provider.Candidate{{
		Provider:  providerName,
		Title:     title,
		Year:      m.SeasonYear,
		MediaType: mediaType,
		Language:  "Japanese",
		Country:   country,
		Genres:    m.Genres,
		ID:        fmt.Sprintf("%d", m.ID),
		AnimeHint: provider.AnimeYes,
	}}, nil
}

// LookupAnime reports AnimeYes when AniList knows the title and AnimeUnknown
// otherwise. A miss on AniList is not proof a title is not anime.
func (p *Provider) LookupAnime(ctx context.Context, title string) (provider.AnimeHint, error) {
	_, err := p.fetch(ctx, title, 0)
	switch {
	case err == nil:
		return provider.AnimeYes, nil
	case provider.IsNotFound(err):
		return provider.AnimeUnknown, nil
	default:
		return provider.AnimeUnknown, err
	}
}

func (p *Provider) fetch(ctx context.Context, title string, year int) (*media, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "search requires a title"}
	}

	variables := map[string]any{"search": title}
	if year > 0 {
		variables["year"] = year
	}
	body, err := json.Marshal(map[string]any{"query": mediaQuery, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("encode anilist query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer resp.Body.Close()

	var decoded graphQLResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, decoded)
	}
	if decodeErr != nil {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: "decode anilist response: " + decodeErr.Error()}
	}
	if decoded.Data.Media == nil {
		return nil, provider.NotFound(providerName, "no anilist match for "+title)
	}
	return decoded.Data.Media, nil
}

func statusError(status int, decoded graphQLResponse) error {
	msg := http.StatusText(status)
	if len(decoded.Errors) > 0 && decoded.Errors[0].Message != "" {
		msg = decoded.Errors[0].Message
	}
	msg = fmt.Sprintf("anilist: %s (status %d)", msg, status)

	perr := &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg, StatusCode: status}
	switch {
	case status == http.StatusNotFound:
		perr.Code = provider.CodeNotFound
	case status == http.StatusTooManyRequests:
		perr.Code = provider.CodeRateLimited
		perr.Retry = true
		perr.RetryAfter = 60
	case status == http.StatusBadRequest:
		perr.Code = provider.CodeInvalidRequest
	case status >= 500:
		perr.Code = provider.CodeUnavailable
		perr.Retry = true
	}
	return perr
}
