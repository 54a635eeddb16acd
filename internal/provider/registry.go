// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"slices"
	"strings"
	"sync"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

// Registry holds the configured providers and resolves model references
// against a default and an ordered failover chain.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	defaultRef string
	failover   []string
}

var _ Router = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, balcaoerr.New(balcaoerr.CodeProviderNotFound, "provider not found: "+name,
			balcaoerr.FieldProvider(name))
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetDefault sets the "provider/model" used for empty references.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// DefaultRef returns the configured default reference.
func (r *Registry) DefaultRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRef
}

// SetFailover sets the references tried, in order, when the primary is
// unavailable.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = slices.Clone(chain)
	return nil
}

// Route returns the first available provider among ref (or the default)
// and the failover chain. It does not call the provider.
func (r *Registry) Route(ctx context.Context, ref string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ref == "" || ref == "default" {
		ref = r.defaultRef
	}
	if ref == "" {
		return nil, "", balcaoerr.New(balcaoerr.CodeProviderNoDefault, "no default provider configured")
	}
	if !strings.Contains(ref, "/") {
		return nil, "", balcaoerr.Errorf(balcaoerr.CodeProviderInvalidModelRef,
			"model %q must use provider/model format", ref)
	}

	candidates := append([]string{ref}, r.failover...)
	for _, candidate := range candidates {
		name, model := parseRef(candidate)
		p, ok := r.providers[name]
		if !ok || !p.Available(ctx) {
			continue
		}
		return p, model, nil
	}

	return nil, "", balcaoerr.New(balcaoerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found")
}

// Health returns the metrics of every provider that reports them.
func (r *Registry) Health() map[string]health.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]health.Metrics, len(r.providers))
	for name, p := range r.providers {
		if hr, ok := p.(HealthReporter); ok {
			out[name] = hr.HealthMetrics()
		}
	}
	return out
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return balcaoerr.Join(errs...)
	}
	return nil
}

func (r *Registry) checkRefLocked(ref string) error {
	name, _ := parseRef(ref)
	if _, ok := r.providers[name]; !ok {
		return balcaoerr.New(balcaoerr.CodeProviderNotFound, "provider not registered: "+name,
			balcaoerr.FieldProvider(name))
	}
	return nil
}

// parseRef splits "provider/model" on the first slash.
func parseRef(ref string) (name, model string) {
	name, model, _ = strings.Cut(ref, "/")
	return name, model
}
