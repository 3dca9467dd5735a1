package tvdb

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
)

const providerName = "tvdb"

// maxResults bounds how many search hits become candidates
const maxResults = 5

// TVDBClient captures the dashotv client methods used by this provider.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
}

// Provider implements provider.Provider for TheTVDB.
type Provider struct {
	client TVDBClient
	apiKey string
	login  func(apiKey string) (TVDBClient, error)
}

// New creates a new TVDB provider instance.
func New() *Provider {
	return &Provider{
		login: func(apiKey string) (TVDBClient, error) {
			return tvdbapi.Login(apiKey)
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Configure logs in with the API key.
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKeyRaw, ok := config["api_key"].(string)
	if !ok {
		return fmt.Errorf("api_key is required")
	}

	apiKey := strings.TrimSpace(apiKeyRaw)
	if apiKey == "" {
		return fmt.Errorf("api_key is required")
	}

	client, err := p.login(apiKey)
	if err != nil {
		return p.mapError(err)
	}

	p.apiKey = apiKey
	p.client = client

	return nil
}

// Search lists series and movies matching the title. The first series hit is
// expanded for its genres, country and original language.
func (p *Provider) Search(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	if p.client == nil || p.apiKey == "" {
		return nil, fmt.Errorf("provider not configured")
	}

	title := strings.TrimSpace(query.Title)
	if title == "" {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "search requires a title"}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := operations.GetSearchResultsRequest{Query: &title}
	if query.Year > 0 {
		yf := float64(query.Year)
		req.Year = &yf
	}

	resp, err := p.client.GetSearchResults(req)
	if err != nil {
		return nil, p.mapError(err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, provider.NotFound(providerName, fmt.Sprintf("no results found for: %s", title))
	}

	candidates := make([]provider.Candidate, 0, maxResults)
	for _, result := range resp.Data {
		c, ok := toCandidate(result)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
		if len(candidates) == maxResults {
			break
		}
	}
	if len(candidates) == 0 {
		return nil, provider.NotFound(providerName, fmt.Sprintf("no series or movie found for: %s", title))
	}

	// Prefer the parsed type when the listing mixes both
	if query.SeriesLikely != candidates[0].IsSeries() {
		for i, c := range candidates {
			if c.IsSeries() == query.SeriesLikely {
				candidates[0], candidates[i] = candidates[i], candidates[0]
				break
			}
		}
	}

	if candidates[0].IsSeries() {
		p.expandSeries(ctx, &candidates[0])
	}

	return candidates, nil
}

func (p *Provider) expandSeries(ctx context.Context, c *provider.Candidate) {
	id := parseInt64(c.ID)
	if id == 0 || ctx.Err() != nil {
		return
	}

	meta := operations.GetSeriesExtendedQueryParamMetaTranslations
	resp, err := p.client.GetSeriesExtended(float64(id), &meta, nil)
	if err != nil || resp == nil || resp.Data == nil {
		return
	}

	series := resp.Data
	for _, g := range series.Genres {
		if g.Name != nil && strings.TrimSpace(*g.Name) != "" {
			c.Genres = append(c.Genres, strings.TrimSpace(*g.Name))
		}
	}
	c.Country = firstNonEmptyString(pointerToString(series.Country), c.Country)
	c.Language = firstNonEmptyString(pointerToString(series.OriginalLanguage), c.Language)

	if len(c.Genres) > 0 {
		switch {
		case !c.HasGenre("Animation") && !c.HasGenre("Anime"):
			c.AnimeHint = provider.AnimeNo
		case c.HasGenre("Anime"), strings.EqualFold(c.Country, "jpn"):
			c.AnimeHint = provider.AnimeYes
		}
	}
}

func toCandidate(result shared.SearchResult) (provider.Candidate, bool) {
	id := parseInt64(pointerToString(result.TvdbID))
	if id == 0 {
		id = parseInt64(pointerToString(result.ID))
	}
	if id == 0 {
		return provider.Candidate{}, false
	}

	var mediaType provider.MediaType
	switch strings.ToLower(pointerToString(result.Type)) {
	case "series":
		mediaType = provider.MediaTypeSeries
	case "movie":
		mediaType = provider.MediaTypeMovie
	default:
		return provider.Candidate{}, false
	}

	year, _ := strconv.Atoi(pointerToString(result.Year))

	return provider.Candidate{
		Provider:  providerName,
		Title:     firstNonEmptyString(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title)),
		Year:      year,
		MediaType: mediaType,
		ID:        strconv.FormatInt(id, 10),
		AnimeHint: provider.AnimeUnknown,
	}, true
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func parseInt64(value string) int64 {
	// search ids come back as "series-81189" or "81189"
	if i := strings.LastIndex(value, "-"); i >= 0 {
		value = value[i+1:]
	}
	parsed, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return parsed
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	status := provider.StatusFromMessage(msg)

	switch {
	case status == http.StatusUnauthorized, strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeAuthFailed, Message: "TVDB authentication failed: " + msg, StatusCode: status}
	case status == http.StatusTooManyRequests, strings.Contains(lower, "too many"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeRateLimited, Message: msg, Retry: true, RetryAfter: 5, StatusCode: status}
	case status == http.StatusNotFound, strings.Contains(lower, "not found"):
		return provider.NotFound(providerName, msg)
	case status >= 500, strings.Contains(lower, "unavailable"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30, StatusCode: status}
	default:
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg, StatusCode: status}
	}
}
