// Package registry resolves a tenant's configured PMS type to a fresh
// adapter instance.
package registry

import (
	"log/slog"
	"sort"

	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/mock"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/qloapps"
)

// Provider identifiers accepted by [Registry.Resolve].
const (
	ProviderCustom  = "custom"
	ProviderQloApps = "qloapps"
	ProviderMock    = "mock"
)

// Factory builds a new, uninitialized adapter.
type Factory func(logger *slog.Logger) pms.Adapter

// Registry maps provider ids to adapter factories. Unknown ids fall back to
// the mock adapter.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// Option configures a [Registry] at construction. The table is read-only
// afterwards.
type Option func(*Registry)

// WithQloAppsOptions configures every QloApps adapter the registry builds.
func WithQloAppsOptions(opts ...qloapps.Option) Option {
	return func(r *Registry) {
		r.factories[ProviderQloApps] = func(l *slog.Logger) pms.Adapter {
			return qloapps.New(l, opts...)
		}
	}
}

// WithProvider adds or replaces the factory for providerID.
func WithProvider(providerID string, f Factory) Option {
	return func(r *Registry) { r.factories[providerID] = f }
}

// New returns a Registry with the built-in providers.
func New(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	newMock := func(l *slog.Logger) pms.Adapter { return mock.New(l) }
	r := &Registry{
		logger: logger,
		factories: map[string]Factory{
			ProviderCustom:  newMock,
			ProviderMock:    newMock,
			ProviderQloApps: func(l *slog.Logger) pms.Adapter { return qloapps.New(l) },
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a new adapter for providerID. Each call yields a fresh
// instance so tenants never share credentials.
func (r *Registry) Resolve(providerID string) pms.Adapter {
	if f, ok := r.factories[providerID]; ok {
		return f(r.logger)
	}
	r.logger.Warn("adapter not registered, falling back to mock", "pms_type", providerID)
	return mock.New(r.logger)
}

// Providers lists the registered provider ids in sorted order.
func (r *Registry) Providers() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
