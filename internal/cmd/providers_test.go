package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/provider"
	"github.com/google/go-cmp/cmp"
)

type stubProvider struct {
	name   string
	search func(context.Context, provider.Query) ([]provider.Candidate, error)
}

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Search(ctx context.Context, q provider.Query) ([]provider.Candidate, error) {
	return s.search(ctx, q)
}

func TestTestProviders(t *testing.T) {
	registry := provider.NewRegistry()
	register := func(name string, enable bool, search func(context.Context, provider.Query) ([]provider.Candidate, error)) {
		_ = registry.Register(name, stubProvider{name: name, search: search}, 0)
		if enable {
			_ = registry.Enable(name)
		}
	}
	register("good", true, func(_ context.Context, q provider.Query) ([]provider.Candidate, error) {
		return []provider.Candidate{{Title: q.Title, Year: q.Year}}, nil
	})
	register("empty", true, func(context.Context, provider.Query) ([]provider.Candidate, error) {
		return nil, nil
	})
	register("broken", true, func(context.Context, provider.Query) ([]provider.Candidate, error) {
		return nil, errors.New("boom")
	})
	register("off", false, nil)

	rows, failed := testProviders(context.Background(), registry, []string{"good", "empty", "broken", "off", "nope"}, time.Second)

	if failed != 4 {
		t.Errorf("testProviders() failed = %d, want 4", failed)
	}
	status := make([]string, 0, len(rows))
	for _, r := range rows {
		status = append(status, r[0]+":"+r[1])
	}
	want := []string{"good:ok", "empty:error", "broken:error", "off:disabled", "nope:unknown"}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("testProviders() status mismatch (-want +got):\n%s", diff)
	}
}
