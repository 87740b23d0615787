package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/hmcts/sscs-hearings-api/internal/platform/firestore"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

// Registry wires the Firestore backed repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider
	cases    *CaseRepository
	health   repositories.HealthRepository
}

// RegistryOption customises registry construction.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	caseCollection string
	caseOpts       []CaseRepositoryOption
	checks         []repositories.DependencyCheck
	healthOpts     []repositories.DependencyHealthOption
}

// WithCaseCollection overrides the collection holding cases.
func WithCaseCollection(name string) RegistryOption {
	return func(cfg *registryConfig) { cfg.caseCollection = name }
}

// WithCaseOptions forwards options to the case repository.
func WithCaseOptions(opts ...CaseRepositoryOption) RegistryOption {
	return func(cfg *registryConfig) { cfg.caseOpts = append(cfg.caseOpts, opts...) }
}

// WithDependencyChecks adds readiness probes alongside the Firestore ping.
func WithDependencyChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(cfg *registryConfig) { cfg.checks = append(cfg.checks, checks...) }
}

// WithHealthOptions forwards options to the dependency health repository.
func WithHealthOptions(opts ...repositories.DependencyHealthOption) RegistryOption {
	return func(cfg *registryConfig) { cfg.healthOpts = append(cfg.healthOpts, opts...) }
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repository registry on top of provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}
	cfg := registryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	cases, err := NewCaseRepository(provider, cfg.caseCollection, cfg.caseOpts...)
	if err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{
		Name:    "firestore",
		Timeout: 2 * time.Second,
		Check:   provider.Ping,
	}}, cfg.checks...)
	health, err := repositories.NewDependencyHealthRepository(checks, cfg.healthOpts...)
	if err != nil {
		return nil, err
	}

	return &Registry{provider: provider, cases: cases, health: health}, nil
}

// Cases returns the case repository.
func (r *Registry) Cases() repositories.CaseRepository { return r.cases }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
