package core

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

func init() {
	// go-cache persists interface values through gob
	gob.Register([]provider.Candidate(nil))
}

// Resolver queries metadata providers in priority order and returns ranked
// candidates. A provider is only consulted when every provider before it
// produced nothing usable.
type Resolver struct {
	providers  []provider.Provider
	ranker     Ranker
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *provider.RateLimiter
	cache      *cache.Cache
	logger     *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRanker replaces the default TitleYearRanker.
func WithRanker(r Ranker) ResolverOption {
	return func(res *Resolver) { res.ranker = r }
}

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) ResolverOption {
	return func(res *Resolver) { res.timeout = d }
}

// WithRetries retries transient failures n times with a constant delay.
func WithRetries(n int, delay time.Duration) ResolverOption {
	return func(res *Resolver) {
		res.maxRetries = n
		res.retryDelay = delay
	}
}

// WithRequestDelay spaces consecutive provider calls by at least d.
func WithRequestDelay(d time.Duration) ResolverOption {
	return func(res *Resolver) {
		if d > 0 {
			res.limiter = provider.NewRateLimiter(1, d)
		} else {
			res.limiter = nil
		}
	}
}

// WithCache enables the result cache.
func WithCache(c *cache.Cache) ResolverOption {
	return func(res *Resolver) { res.cache = c }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(res *Resolver) { res.logger = l }
}

// NewResultCache creates a resolver cache whose entries live for ttl.
func NewResultCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return cache.New(ttl, 10*time.Minute)
}

// NewResolver builds a resolver over providers, queried in the given order.
func NewResolver(providers []provider.Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers:  providers,
		ranker:     TitleYearRanker{},
		timeout:    10 * time.Second,
		maxRetries: 2,
		retryDelay: 2 * time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the provider names in query order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Resolve returns ranked candidates for tokens. The list is empty when every
// provider came back empty or failed. The error is only set when ctx ends.
func (r *Resolver) Resolve(ctx context.Context, tokens media.ParsedTokens) ([]provider.Candidate, error) {
	key := cacheKey(tokens)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			if cached, ok := v.([]provider.Candidate); ok {
				return append([]provider.Candidate(nil), cached...), nil
			}
		}
	}

	q := provider.Query{Title: tokens.Title, Year: tokens.Year, SeriesLikely: tokens.SeriesLikely}
	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := r.query(ctx, p, q)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && provider.IsNotFound(err):
			r.logger.Debug("no match", zap.String("provider", p.Name()), zap.String("title", q.Title), zap.Int("year", q.Year))
			continue
		case err != nil:
			r.logger.Warn("provider lookup failed", zap.String("provider", p.Name()), zap.String("title", q.Title), zap.Error(err))
			continue
		case len(candidates) == 0:
			continue
		}

		ranked := r.ranker.Rank(tokens, candidates)
		if r.cache != nil {
			r.cache.Set(key, ranked, cache.DefaultExpiration)
		}
		return append([]provider.Candidate(nil), ranked...), nil
	}
	return nil, nil
}

// query performs one provider search with retries on transient failures.
func (r *Resolver) query(ctx context.Context, p provider.Provider, q provider.Query) ([]provider.Candidate, error) {
	var candidates []provider.Candidate
	attempt := 0

	op := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		res, err := p.Search(callCtx, q)
		if err == nil {
			candidates = res
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !provider.IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.logger.Debug("transient provider failure",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), uint64(max(r.maxRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return candidates, nil
}

func cacheKey(tokens media.ParsedTokens) string {
	return fmt.Sprintf("%s|%d|%t", NormalizeTitle(tokens.Title), tokens.Year, tokens.SeriesLikely)
}

// LoadCache restores cached results written by SaveCache. A missing file is
// not an error.
func (r *Resolver) LoadCache(path string) error {
	if r.cache == nil || path == "" {
		return nil
	}
	if err := r.cache.LoadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load lookup cache: %w", err)
	}
	return nil
}

// SaveCache persists cached results to path.
func (r *Resolver) SaveCache(path string) error {
	if r.cache == nil || path == "" {
		return nil
	}
	if err := r.cache.SaveFile(path); err != nil {
		return fmt.Errorf("save lookup cache: %w", err)
	}
	return nil
}
