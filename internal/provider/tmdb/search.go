package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
)

// Search queries movies and TV shows, listing the type the filename suggests
// first. The top hit of each type is enriched with its genres.
func (p *Provider) Search(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if strings.TrimSpace(query.Title) == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a title",
		}
	}

	searches := []func(context.Context, provider.Query) ([]provider.Candidate, error){p.searchMovies, p.searchShows}
	if query.SeriesLikely {
		searches[0], searches[1] = searches[1], searches[0]
	}

	var candidates []provider.Candidate
	for _, search := range searches {
		found, err := search(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	if len(candidates) == 0 {
		return nil, provider.NotFound(providerName, "no results found for "+query.Title)
	}
	return candidates, nil
}

func (p *Provider) wait(ctx context.Context) error {
	return p.rateLimiter.Wait(ctx)
}

func (p *Provider) searchMovies(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	options := map[string]string{"language": p.language}
	if query.Year > 0 {
		options["year"] = strconv.Itoa(query.Year)
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	results, err := p.client.SearchMovie(query.Title, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if results == nil || len(results.Results) == 0 {
		return nil, nil
	}

	candidates := make([]provider.Candidate, 0, maxResults)
	for i, movie := range results.Results {
		if i == maxResults {
			break
		}
		candidates = append(candidates, provider.Candidate{
			Provider:  providerName,
			Title:     movie.Title,
			Year:      yearOf(movie.ReleaseDate),
			MediaType: provider.MediaTypeMovie,
			ID:        strconv.Itoa(movie.ID),
			AnimeHint: provider.AnimeUnknown,
		})
	}

	// Full details only for the top hit; the rest keep search data
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	if full, err := p.client.GetMovieInfo(results.Results[0].ID, map[string]string{"language": p.language}); err == nil && full != nil {
		for _, g := range full.Genres {
			candidates[0].Genres = append(candidates[0].Genres, g.Name)
		}
		if full.ImdbID != "" {
			candidates[0].ID = full.ImdbID
		}
		candidates[0].AnimeHint = animeHint(candidates[0])
	}

	return candidates, nil
}

func (p *Provider) searchShows(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	options := map[string]string{"language": p.language}
	if query.Year > 0 {
		options["first_air_date_year"] = strconv.Itoa(query.Year)
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	results, err := p.client.SearchTv(query.Title, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if results == nil || len(results.Results) == 0 {
		return nil, nil
	}

	candidates := make([]provider.Candidate, 0, maxResults)
	for i, show := range results.Results {
		if i == maxResults {
			break
		}
		candidates = append(candidates, provider.Candidate{
			Provider:  providerName,
			Title:     show.Name,
			Year:      yearOf(show.FirstAirDate),
			MediaType: provider.MediaTypeSeries,
			Country:   strings.Join(show.OriginCountry, ", "),
			ID:        strconv.Itoa(show.ID),
			AnimeHint: provider.AnimeUnknown,
		})
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	detailOptions := map[string]string{
		"language":           p.language,
		"append_to_response": "external_ids",
	}
	if full, err := p.client.GetTvInfo(results.Results[0].ID, detailOptions); err == nil && full != nil {
		for _, g := range full.Genres {
			candidates[0].Genres = append(candidates[0].Genres, g.Name)
		}
		if full.ExternalIDs != nil && full.ExternalIDs.ImdbID != "" {
			candidates[0].ID = full.ExternalIDs.ImdbID
		}
		candidates[0].AnimeHint = animeHint(candidates[0])
	}

	return candidates, nil
}

// animeHint needs genres to say anything: Japanese animation is anime, and a
// title with known genres but no animation is not.
func animeHint(c provider.Candidate) provider.AnimeHint {
	if len(c.Genres) == 0 {
		return provider.AnimeUnknown
	}
	if !c.HasGenre("Animation") {
		return provider.AnimeNo
	}
	if c.FromCountry("JP") {
		return provider.AnimeYes
	}
	return provider.AnimeUnknown
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
