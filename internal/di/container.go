package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
	"github.com/hmcts/sscs-hearings-api/internal/platform/idempotency"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
	"github.com/hmcts/sscs-hearings-api/internal/services"
)

// Services bundles the service-layer contracts that handlers and subscribers rely upon.
type Services struct {
	Hearings        services.HearingsService
	HmcMessages     services.HmcMessageService
	ServiceHearings services.ServiceHearingsService
	System          services.SystemService
}

// Dependencies carries the infrastructure built in main. Gateway and ReferenceData
// are required; Ledger is only consulted when inbound dedupe is enabled.
type Dependencies struct {
	Registry      repositories.Registry
	Gateway       services.HearingGateway
	ReferenceData services.ReferenceData
	Ledger        idempotency.Store
	Logger        services.Logger
	Build         services.BuildInfo
	Clock         func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Ledger       idempotency.Store
}

// NewContainer constructs the runtime dependencies.
func NewContainer(ctx context.Context, cfg config.Config, deps Dependencies) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}
	if cfg.Features.InboundDedupe {
		container.Ledger = deps.Ledger
	}
	return container, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services
	reg := deps.Registry

	mapper, err := services.NewHearingsMapper(services.HearingsMapperDeps{
		ReferenceData:   deps.ReferenceData,
		ServiceCode:     cfg.Service.Code,
		CaseDeepLinkURL: cfg.Service.CaseDeepLinkURL,
		Adjournment:     cfg.Features.Adjournment,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build hearings mapper: %w", err)
	}

	hearingsSvc, err := services.NewHearingsService(services.HearingsServiceDeps{
		Cases:   reg.Cases(),
		Gateway: deps.Gateway,
		Mapper:  mapper,
		Retry:   retryPolicy(cfg.Retry),
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build hearings service: %w", err)
	}
	svc.Hearings = hearingsSvc

	messageDeps := services.HmcMessageServiceDeps{
		Cases:            reg.Cases(),
		ReferenceData:    deps.ReferenceData,
		Gateway:          deps.Gateway,
		ServiceCode:      cfg.Service.Code,
		DeploymentID:     cfg.Service.DeploymentID,
		DeploymentFilter: cfg.Features.DeploymentFilter,
		Clock:            deps.Clock,
		Logger:           deps.Logger,
	}
	if cfg.Features.InboundDedupe && deps.Ledger != nil {
		messageDeps.Ledger = deps.Ledger
		messageDeps.LedgerTTL = cfg.Idempotency.TTL
		messageDeps.PendingHold = cfg.Idempotency.PendingHold
	}
	messageSvc, err := services.NewHmcMessageService(messageDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build hmc message service: %w", err)
	}
	svc.HmcMessages = messageSvc

	serviceHearingsSvc, err := services.NewServiceHearingsService(services.ServiceHearingsServiceDeps{
		Cases:  reg.Cases(),
		Mapper: mapper,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build service hearings service: %w", err)
	}
	svc.ServiceHearings = serviceHearingsSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.Clock,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func retryPolicy(cfg config.RetryConfig) services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		Multiplier:      cfg.Multiplier,
		MaxInterval:     cfg.MaxInterval,
	}
}
