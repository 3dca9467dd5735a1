package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages all available providers
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	priorities    map[string]int
	enabledStatus map[string]bool
	configs       map[string]map[string]interface{}
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		priorities:    make(map[string]int),
		enabledStatus: make(map[string]bool),
		configs:       make(map[string]map[string]interface{}),
	}
}

// Register adds a provider to the registry. Providers start disabled.
func (r *Registry) Register(name string, provider Provider, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	r.priorities[name] = priority
	r.enabledStatus[name] = false

	return nil
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	return provider, exists
}

// List returns all registered providers, highest priority first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.SliceStable(names, func(i, j int) bool {
		if r.priorities[names[i]] == r.priorities[names[j]] {
			return names[i] < names[j]
		}
		return r.priorities[names[i]] > r.priorities[names[j]]
	})

	return names
}

// Enable marks a provider usable. Configurable providers must be configured first.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	if _, ok := provider.(Configurable); ok {
		if config, hasConfig := r.configs[name]; !hasConfig || len(config) == 0 {
			return fmt.Errorf("provider %s requires configuration", name)
		}
	}

	r.enabledStatus[name] = true
	return nil
}

// IsEnabled reports whether the provider has been enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledStatus[name]
}

// Configure sets configuration for a provider
func (r *Registry) Configure(name string, config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	configurable, ok := provider.(Configurable)
	if !ok {
		return fmt.Errorf("provider %s does not accept configuration", name)
	}

	if err := configurable.Configure(config); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", name, err)
	}

	r.configs[name] = config

	return nil
}

// Ordered returns the enabled providers named in order, skipping names that
// are unknown or disabled. With no names it falls back to priority order.
func (r *Registry) Ordered(order []string) []Provider {
	if len(order) == 0 {
		order = r.List()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(order))
	out := make([]Provider, 0, len(order))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := r.providers[name]; ok && r.enabledStatus[name] {
			out = append(out, p)
		}
	}
	return out
}
