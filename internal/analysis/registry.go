package analysis

import (
	"fmt"
	"strings"
)

// Registry keeps a mapping from provider names to configured adapters.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds or replaces a provider. Nil providers are ignored so callers can
// register adapters whose credentials are absent without branching.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	if r.providers == nil {
		r.providers = map[string]Provider{}
	}
	r.providers[strings.ToLower(p.Name())] = p
}

// Resolve returns a provider by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Provider, error) {
	if p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider %s is not registered", name)
}

// Ordered returns registered providers following the priority list. Unknown or
// unconfigured names are skipped.
func (r *Registry) Ordered(priority []string) []Provider {
	seen := map[string]bool{}
	out := make([]Provider, 0, len(priority))
	for _, name := range priority {
		key := strings.ToLower(strings.TrimSpace(name))
		if seen[key] {
			continue
		}
		seen[key] = true
		if p, err := r.Resolve(key); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Names lists registered provider names in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}
