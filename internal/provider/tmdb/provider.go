package tmdb

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/ryanbradynd05/go-tmdb"
)

const (
	providerName = "tmdb"
	// maxResults bounds how many search hits per media type become candidates
	maxResults = 5
)

// Provider implements provider.Provider for The Movie Database
type Provider struct {
	client      TMDBClient
	language    string
	apiKey      string
	rateLimiter *provider.RateLimiter
}

// TMDBClient interface for testing (matches *tmdb.TMDb exactly)
type TMDBClient interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetMovieInfo(id int, options map[string]string) (*tmdb.Movie, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
}

// New creates a new TMDB provider instance
func New() *Provider {
	return &Provider{
		language: "en-US",
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKey, ok := config["api_key"].(string)
	if !ok || strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	p.apiKey = strings.TrimSpace(apiKey)

	if language, ok := config["language"].(string); ok && language != "" {
		p.language = language
	} else {
		p.language = "en-US"
	}

	// Tests inject a client before configuring
	if p.client == nil {
		p.client = tmdb.Init(tmdb.Config{
			APIKey:   p.apiKey,
			Proxies:  nil,
			UseProxy: false,
		})
	}

	// 38 requests per 10 seconds keeps us under the published limit
	p.rateLimiter = provider.NewRateLimiter(38, 10*time.Second)

	return nil
}

// mapError maps TMDB errors to provider errors
func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	status := provider.StatusFromMessage(err.Error())

	if status == http.StatusUnauthorized || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeAuthFailed,
			Message:    "TMDB authentication failed: " + err.Error(),
			StatusCode: status,
		}
	}
	if status == http.StatusTooManyRequests || strings.Contains(errStr, "rate limit") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
			StatusCode: status,
		}
	}
	if status >= 500 || strings.Contains(errStr, "unavailable") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
			StatusCode: status,
		}
	}
	if status == http.StatusNotFound {
		return provider.NotFound(providerName, "TMDB resource not found")
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return err
	}

	return &provider.ProviderError{
		Provider:   providerName,
		Code:       provider.CodeUnknown,
		Message:    "TMDB error: " + err.Error(),
		StatusCode: status,
	}
}
