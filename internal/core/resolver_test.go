package core

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/google/go-cmp/cmp"
)

// stubProvider answers searches through a func field.
type stubProvider struct {
	name   string
	calls  atomic.Int32
	search func(ctx context.Context, q provider.Query) ([]provider.Candidate, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, q provider.Query) ([]provider.Candidate, error) {
	s.calls.Add(1)
	if s.search == nil {
		return nil, provider.NotFound(s.name, "not found")
	}
	return s.search(ctx, q)
}

func returns(cands ...provider.Candidate) func(context.Context, provider.Query) ([]provider.Candidate, error) {
	return func(context.Context, provider.Query) ([]provider.Candidate, error) { return cands, nil }
}

func fails(err error) func(context.Context, provider.Query) ([]provider.Candidate, error) {
	return func(context.Context, provider.Query) ([]provider.Candidate, error) { return nil, err }
}

func titles(cands []provider.Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Provider+":"+c.Title)
	}
	return out
}

func TestResolverProviderOrder(t *testing.T) {
	tokens := media.ParsedTokens{Title: "Heat", Year: 1995}
	heat := provider.Candidate{Title: "Heat", Year: 1995, MediaType: provider.MediaTypeMovie}
	withProvider := func(c provider.Candidate, name string) provider.Candidate {
		c.Provider = name
		return c
	}
	unavailable := &provider.ProviderError{Code: provider.CodeUnavailable, Message: "503"}
	auth := &provider.ProviderError{Code: provider.CodeAuthFailed, Message: "bad key"}

	tests := []struct {
		name      string
		first     func(context.Context, provider.Query) ([]provider.Candidate, error)
		second    func(context.Context, provider.Query) ([]provider.Candidate, error)
		want      []string
		wantCalls [2]int32
	}{
		{"first answers", returns(withProvider(heat, "a")), returns(withProvider(heat, "b")), []string{"a:Heat"}, [2]int32{1, 0}},
		{"not found falls through", nil, returns(withProvider(heat, "b")), []string{"b:Heat"}, [2]int32{1, 1}},
		{"empty falls through", returns(), returns(withProvider(heat, "b")), []string{"b:Heat"}, [2]int32{1, 1}},
		{"transient retried then falls through", fails(unavailable), returns(withProvider(heat, "b")), []string{"b:Heat"}, [2]int32{3, 1}},
		{"auth failure not retried", fails(auth), returns(withProvider(heat, "b")), []string{"b:Heat"}, [2]int32{1, 1}},
		{"nothing anywhere", nil, nil, nil, [2]int32{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubProvider{name: "a", search: tt.first}
			b := &stubProvider{name: "b", search: tt.second}
			r := NewResolver([]provider.Provider{a, b}, WithRetries(2, time.Millisecond))

			got, err := r.Resolve(context.Background(), tokens)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, titles(got)); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
			if calls := [2]int32{a.calls.Load(), b.calls.Load()}; calls != tt.wantCalls {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
		})
	}
}

func TestResolverTransientRecovers(t *testing.T) {
	var n atomic.Int32
	p := &stubProvider{name: "a", search: func(context.Context, provider.Query) ([]provider.Candidate, error) {
		if n.Add(1) == 1 {
			return nil, &provider.ProviderError{Code: provider.CodeRateLimited, Message: "slow down"}
		}
		return []provider.Candidate{{Provider: "a", Title: "Heat"}}, nil
	}}
	r := NewResolver([]provider.Provider{p}, WithRetries(2, time.Millisecond))

	got, err := r.Resolve(context.Background(), media.ParsedTokens{Title: "Heat"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Resolve() = %v, %v; want one candidate", got, err)
	}
	if p.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", p.calls.Load())
	}
}

func TestResolverRanksCandidates(t *testing.T) {
	p := &stubProvider{name: "a", search: returns(
		provider.Candidate{Provider: "a", Title: "Heat Wave", Year: 1995},
		provider.Candidate{Provider: "a", Title: "Heat", Year: 1986},
		provider.Candidate{Provider: "a", Title: "Heat", Year: 1995},
	)}
	got, _ := NewResolver([]provider.Provider{p}).Resolve(context.Background(), media.ParsedTokens{Title: "heat", Year: 1995})

	var years []int
	for _, c := range got {
		years = append(years, c.Year)
	}
	if diff := cmp.Diff([]int{1995, 1986, 1995}, years); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	if got[0].Title != "Heat" {
		t.Errorf("best candidate = %q, want Heat", got[0].Title)
	}
}

func TestResolverCustomRanker(t *testing.T) {
	p := &stubProvider{name: "a", search: returns(
		provider.Candidate{Provider: "a", Title: "Heat", Year: 1995},
		provider.Candidate{Provider: "a", Title: "Heat", Year: 1986},
	)}
	oldest := RankerFunc(func(_ media.ParsedTokens, cands []provider.Candidate) []provider.Candidate {
		out := slices.Clone(cands)
		slices.SortFunc(out, func(a, b provider.Candidate) int { return a.Year - b.Year })
		return out
	})

	got, err := NewResolver([]provider.Provider{p}, WithRanker(oldest)).Resolve(context.Background(), media.ParsedTokens{Title: "Heat", Year: 1995})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 2 || got[0].Year != 1986 {
		t.Errorf("Resolve() = %v, want the custom ranker's order", got)
	}
}

func TestResolverCache(t *testing.T) {
	p := &stubProvider{name: "a", search: returns(provider.Candidate{Provider: "a", Title: "Heat", Year: 1995})}
	c := NewResultCache(time.Hour)
	r := NewResolver([]provider.Provider{p}, WithCache(c))
	ctx := context.Background()

	first, _ := r.Resolve(ctx, media.ParsedTokens{Title: "Heat", Year: 1995})
	first[0].Title = "mutated"
	second, _ := r.Resolve(ctx, media.ParsedTokens{Title: "HEAT", Year: 1995})
	if p.calls.Load() != 1 {
		t.Errorf("calls = %d, want the second lookup served from cache", p.calls.Load())
	}
	if second[0].Title != "Heat" {
		t.Error("caller mutation leaked into the cache")
	}

	r.Resolve(ctx, media.ParsedTokens{Title: "Heat", Year: 1995, SeriesLikely: true})
	if p.calls.Load() != 2 {
		t.Error("series and movie lookups shared a cache entry")
	}

	path := filepath.Join(t.TempDir(), "lookup.cache")
	if err := r.SaveCache(path); err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}
	fresh := &stubProvider{name: "a"}
	restored := NewResolver([]provider.Provider{fresh}, WithCache(NewResultCache(time.Hour)))
	if err := restored.LoadCache(path); err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	got, _ := restored.Resolve(ctx, media.ParsedTokens{Title: "heat", Year: 1995})
	if len(got) != 1 || fresh.calls.Load() != 0 {
		t.Errorf("restored cache not used: %v, %d calls", got, fresh.calls.Load())
	}

	if err := restored.LoadCache(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("LoadCache() of a missing file = %v, want nil", err)
	}
}

func TestResolverContext(t *testing.T) {
	t.Run("canceled before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &stubProvider{name: "a"}
		if _, err := NewResolver([]provider.Provider{p}).Resolve(ctx, media.ParsedTokens{Title: "x"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Resolve() error = %v, want context.Canceled", err)
		}
		if p.calls.Load() != 0 {
			t.Error("provider called after cancellation")
		}
	})

	t.Run("per call timeout", func(t *testing.T) {
		slow := &stubProvider{name: "slow", search: func(ctx context.Context, _ provider.Query) ([]provider.Candidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		next := &stubProvider{name: "next", search: returns(provider.Candidate{Provider: "next", Title: "x"})}
		r := NewResolver([]provider.Provider{slow, next}, WithTimeout(10*time.Millisecond), WithRetries(1, time.Millisecond))

		got, err := r.Resolve(context.Background(), media.ParsedTokens{Title: "x"})
		if err != nil || len(got) != 1 {
			t.Fatalf("Resolve() = %v, %v; want fallback to next provider", got, err)
		}
		if slow.calls.Load() != 2 {
			t.Errorf("slow provider called %d times, want 2 (timeout is transient)", slow.calls.Load())
		}
	})
}

func TestResolverRequestDelay(t *testing.T) {
	p := &stubProvider{name: "a"}
	r := NewResolver([]provider.Provider{p}, WithRequestDelay(50*time.Millisecond))

	start := time.Now()
	for _, title := range []string{"one", "two", "three"} {
		r.Resolve(context.Background(), media.ParsedTokens{Title: title})
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 lookups took %v, want at least 100ms", elapsed)
	}
	if diff := cmp.Diff([]string{"a"}, r.Providers()); diff != "" {
		t.Errorf("Providers() mismatch (-want +got):\n%s", diff)
	}
}
