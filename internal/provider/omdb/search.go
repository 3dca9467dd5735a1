package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
)

// searchResponse is the s= listing; the omdb client only covers t= and i=.
type searchResponse struct {
	Search []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		ImdbID string `json:"imdbID"`
		Type   string `json:"Type"`
	} `json:"Search"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Search looks a title up with an exact t= query first. When that misses it
// falls back to an s= listing and resolves the first hit by IMDb ID.
func (p *Provider) Search(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	if p.client == nil || p.apiKey == "" {
		return nil, fmt.Errorf("provider not configured")
	}

	title := strings.TrimSpace(query.Title)
	if title == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a title",
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := omdb.QueryData{Title: title}
	if query.Year > 0 {
		data.Year = strconv.Itoa(query.Year)
	}

	result, err := p.client.SearchByTitle(data)
	if err == nil {
		if c, ok := toCandidate(result); ok {
			return []provider.Candidate{c}, nil
		}
	} else if mapped := p.mapError(err); !provider.IsNotFound(mapped) {
		return nil, mapped
	}

	imdbID, err := p.firstListingID(ctx, title)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err = p.client.SearchByImdbID(omdb.QueryData{ImdbID: imdbID})
	if err != nil {
		return nil, p.mapError(err)
	}

	c, ok := toCandidate(result)
	if !ok {
		return nil, provider.NotFound(providerName, "title not found")
	}
	return []provider.Candidate{c}, nil
}

func (p *Provider) firstListingID(ctx context.Context, title string) (string, error) {
	req, err := p.buildRequest(ctx, map[string]string{"s": title})
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.mapError(fmt.Errorf("omdb search returned status %d", resp.StatusCode))
	}

	var listing searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  "decode omdb search: " + err.Error(),
		}
	}

	if !strings.EqualFold(listing.Response, "true") || len(listing.Search) == 0 {
		msg := listing.Error
		if msg == "" {
			msg = "no results found for " + title
		}
		return "", p.mapError(fmt.Errorf("%s", msg))
	}

	for _, hit := range listing.Search {
		if hit.ImdbID != "" {
			return hit.ImdbID, nil
		}
	}
	return "", provider.NotFound(providerName, "no results found for "+title)
}

func toCandidate(result any) (provider.Candidate, bool) {
	switch r := result.(type) {
	case omdb.MovieResult:
		return movieCandidate(r), true
	case *omdb.MovieResult:
		if r == nil {
			return provider.Candidate{}, false
		}
		return movieCandidate(*r), true
	case omdb.SeriesResult:
		return seriesCandidate(r), true
	case *omdb.SeriesResult:
		if r == nil {
			return provider.Candidate{}, false
		}
		return seriesCandidate(*r), true
	default:
		return provider.Candidate{}, false
	}
}

func movieCandidate(r omdb.MovieResult) provider.Candidate {
	c := provider.Candidate{
		Provider:  providerName,
		Title:     r.Title,
		Year:      atoi(omdb.FirstYear(r.Year)),
		MediaType: provider.MediaTypeMovie,
		Language:  r.Language,
		Country:   r.Country,
		Genres:    omdb.SplitAndTrim(r.Genre),
		ID:        r.ImdbID,
	}
	c.AnimeHint = animeHint(c)
	return c
}

func seriesCandidate(r omdb.SeriesResult) provider.Candidate {
	c := provider.Candidate{
		Provider:  providerName,
		Title:     r.Title,
		Year:      atoi(omdb.FirstYear(r.Year)),
		MediaType: provider.MediaTypeSeries,
		Language:  r.Language,
		Country:   r.Country,
		Genres:    omdb.SplitAndTrim(r.Genre),
		ID:        r.ImdbID,
	}
	c.AnimeHint = animeHint(c)
	return c
}

// animeHint trusts OMDb when it clearly says either way: Japanese animation is
// anime, a title that is neither animated nor Japanese is not.
func animeHint(c provider.Candidate) provider.AnimeHint {
	animated := c.HasGenre("Animation")
	japanese := c.FromCountry("Japan")
	switch {
	case animated && japanese:
		return provider.AnimeYes
	case !animated && !japanese:
		return provider.AnimeNo
	default:
		return provider.AnimeUnknown
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
