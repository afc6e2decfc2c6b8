package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Registry holds the ordered, enabled provider set.
//
// The configured order is significant: round-robin placement assigns chunk
// i to provider i mod len. The set is read-only after construction, so
// lookups take no lock.
type Registry struct {
	ordered []Provider
	byID    map[string]Provider
}

// NewRegistry builds a registry from the ordered provider list.
// Ids must be unique and lowercase; the set must not be empty.
func NewRegistry(providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, NewBackendConfig("", "no storage providers enabled", nil)
	}

	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		id := p.ID()
		if id == "" || id != strings.ToLower(id) {
			return nil, NewBackendConfig(id, fmt.Sprintf("provider id %q must be non-empty lowercase", id), nil)
		}
		if _, dup := byID[id]; dup {
			return nil, NewBackendConfig(id, fmt.Sprintf("duplicate provider id %q", id), nil)
		}
		byID[id] = p
	}

	return &Registry{
		ordered: append([]Provider(nil), providers...),
		byID:    byID,
	}, nil
}

// Get resolves a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// ForSequence picks the provider for a chunk sequence number by round-robin
// over the configured order.
func (r *Registry) ForSequence(sequence int) Provider {
	return r.ordered[sequence%len(r.ordered)]
}

// Providers returns the providers in configured order.
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.ordered...)
}

// Len returns the number of enabled providers.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Close releases every provider, joining their errors.
func (r *Registry) Close() error {
	var errs []error
	for _, p := range r.ordered {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
