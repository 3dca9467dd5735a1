package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
)

const providerName = "omdb"

// Provider implements provider.Provider for the Open Movie Database.
type Provider struct {
	client     *omdb.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New creates a new OMDb provider instance.
func New() *Provider {
	return &Provider{
		baseURL: omdb.DefaultURL,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Configure applies configuration to the provider.
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKeyRaw, ok := config["api_key"].(string)
	if !ok {
		return fmt.Errorf("api_key is required")
	}

	apiKey := strings.TrimSpace(apiKeyRaw)
	if apiKey == "" {
		return fmt.Errorf("api_key is required")
	}

	// Allow overriding the HTTP client before configuration (useful for tests).
	if p.httpClient == nil {
		timeout := 10 * time.Second
		if d, ok := config["timeout"].(time.Duration); ok && d > 0 {
			timeout = d
		}
		p.httpClient = &http.Client{Timeout: timeout}
	}

	p.apiKey = apiKey
	p.client = omdb.NewClient(p.apiKey, p.httpClient)

	return nil
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	status := provider.StatusFromMessage(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"), status == http.StatusUnauthorized:
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeAuthFailed,
			Message:    "OMDb authentication failed: " + msg,
			StatusCode: status,
		}
	case strings.Contains(lower, "not found"):
		return provider.NotFound(providerName, msg)
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"), status == http.StatusTooManyRequests:
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
			StatusCode: status,
		}
	case status >= 500, strings.Contains(lower, "unavailable"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    msg,
			Retry:      true,
			RetryAfter: 30,
			StatusCode: status,
		}
	default:
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnknown,
			Message:    msg,
			StatusCode: status,
		}
	}
}

// buildRequest constructs an HTTP request with common parameters applied.
func (p *Provider) buildRequest(ctx context.Context, params map[string]string) (*http.Request, error) {
	if p.httpClient == nil {
		return nil, fmt.Errorf("http client not configured")
	}

	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	values.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	return req, nil
}
