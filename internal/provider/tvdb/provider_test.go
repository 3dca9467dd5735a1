package tvdb

import (
	"context"
	"errors"
	"testing"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
	"github.com/google/go-cmp/cmp"
)

type stubClient struct {
	search   func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	extended func(float64) (*tvdbapi.GetSeriesExtendedResponse, error)
}

func (s *stubClient) GetSearchResults(req operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
	return s.search(req)
}

func (s *stubClient) GetSeriesExtended(id float64, _ *operations.GetSeriesExtendedQueryParamMeta, _ *bool) (*tvdbapi.GetSeriesExtendedResponse, error) {
	if s.extended == nil {
		return nil, errors.New("not stubbed")
	}
	return s.extended(id)
}

func configured(t *testing.T, client *stubClient) *Provider {
	t.Helper()
	p := New()
	p.login = func(string) (TVDBClient, error) { return client, nil }
	if err := p.Configure(map[string]interface{}{"api_key": "abc12345"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return p
}

func strPtr(s string) *string { return &s }

func TestConfigure(t *testing.T) {
	p := New()
	if err := p.Configure(map[string]interface{}{}); err == nil {
		t.Fatal("expected error when api_key is missing")
	}

	p.login = func(string) (TVDBClient, error) { return nil, errors.New("401 Unauthorized") }
	err := p.Configure(map[string]interface{}{"api_key": "bad"})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeAuthFailed {
		t.Fatalf("Configure() error = %v, want AUTH_FAILED", err)
	}
}

func TestSearchPassesQuery(t *testing.T) {
	var got operations.GetSearchResultsRequest
	p := configured(t, &stubClient{
		search: func(req operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			got = req
			return nil, nil
		},
	})

	_, err := p.Search(context.Background(), provider.Query{Title: " Dark ", Year: 2017})
	if !provider.IsNotFound(err) {
		t.Fatalf("Search() error = %v, want NOT_FOUND", err)
	}
	if got.Query == nil || *got.Query != "Dark" {
		t.Errorf("Query = %v, want Dark", got.Query)
	}
	if got.Year == nil || *got.Year != 2017 {
		t.Errorf("Year = %v, want 2017", got.Year)
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"auth", errors.New("401 unauthorized"), provider.CodeAuthFailed},
		{"throttled", errors.New("429 too many requests"), provider.CodeRateLimited},
		{"down", errors.New("502 bad gateway"), provider.CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := configured(t, &stubClient{
				search: func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
					return nil, tt.err
				},
			})
			_, err := p.Search(context.Background(), provider.Query{Title: "Dark"})
			var perr *provider.ProviderError
			if !errors.As(err, &perr) || perr.Code != tt.code {
				t.Fatalf("Search() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestToCandidate(t *testing.T) {
	tests := []struct {
		name   string
		result shared.SearchResult
		want   provider.Candidate
		ok     bool
	}{
		{
			name: "series",
			result: shared.SearchResult{
				ID:     strPtr("series-366524"),
				TvdbID: strPtr("366524"),
				Name:   strPtr("Dark"),
				Year:   strPtr("2017"),
				Type:   strPtr("series"),
			},
			want: provider.Candidate{Provider: "tvdb", Title: "Dark", Year: 2017, MediaType: provider.MediaTypeSeries, ID: "366524", AnimeHint: provider.AnimeUnknown},
			ok:   true,
		},
		{
			name: "movie id from prefixed field",
			result: shared.SearchResult{
				ID:    strPtr("movie-190"),
				Title: strPtr("Heat"),
				Year:  strPtr("1995"),
				Type:  strPtr("movie"),
			},
			want: provider.Candidate{Provider: "tvdb", Title: "Heat", Year: 1995, MediaType: provider.MediaTypeMovie, ID: "190", AnimeHint: provider.AnimeUnknown},
			ok:   true,
		},
		{
			name:   "person is skipped",
			result: shared.SearchResult{TvdbID: strPtr("1"), Name: strPtr("Someone"), Type: strPtr("person")},
		},
		{
			name:   "missing id",
			result: shared.SearchResult{Name: strPtr("Dark"), Type: strPtr("series")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toCandidate(tt.result)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("toCandidate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
