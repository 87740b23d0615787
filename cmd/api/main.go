package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/hmcts/sscs-hearings-api/internal/di"
	"github.com/hmcts/sscs-hearings-api/internal/handlers"
	"github.com/hmcts/sscs-hearings-api/internal/hmc"
	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
	pfirestore "github.com/hmcts/sscs-hearings-api/internal/platform/firestore"
	"github.com/hmcts/sscs-hearings-api/internal/platform/idempotency"
	"github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
	"github.com/hmcts/sscs-hearings-api/internal/platform/observability"
	"github.com/hmcts/sscs-hearings-api/internal/platform/secrets"
	"github.com/hmcts/sscs-hearings-api/internal/refdata"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
	firestoreRepo "github.com/hmcts/sscs-hearings-api/internal/repositories/firestore"
	"github.com/hmcts/sscs-hearings-api/internal/services"
)

const serviceName = "sscs-hearings-api"

func main() {
	startedAt := time.Now().UTC()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(serviceName, strings.TrimSpace(envValues["HEARINGS_ENVIRONMENT"]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	eventLogger := services.Logger(observability.NewEventLogger(logger.Named("services")))

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	pubsubClient, err := messaging.NewClient(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	hmcClient, err := hmc.NewClient(cfg.HMC, hmc.WithDeploymentID(cfg.Service.DeploymentID))
	if err != nil {
		logger.Fatal("failed to initialise hmc client", zap.Error(err))
	}

	refData, err := refdata.NewProvider(cfg.ReferenceData)
	if err != nil {
		logger.Fatal("failed to load reference data", zap.Error(err))
	}
	defer refData.Close()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider,
		firestoreRepo.WithCaseCollection(cfg.Firestore.CaseCollection),
		firestoreRepo.WithDependencyChecks(dependencyChecks(cfg, hmcClient, pubsubClient)...),
	)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, di.Dependencies{
		Registry:      registry,
		Gateway:       hmcClient,
		ReferenceData: refData,
		Ledger:        idempotency.NewFirestoreStore(firestoreProvider, idempotency.WithCollection(cfg.Idempotency.Collection)),
		Logger:        eventLogger,
		Build:         buildInfo,
		Clock:         time.Now,
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	var publisher services.HearingRequestPublisher
	if topic := strings.TrimSpace(cfg.PubSub.HearingRequestTopic); topic != "" {
		p, err := messaging.NewHearingRequestPublisher(pubsubClient.Topic(topic))
		if err != nil {
			logger.Fatal("failed to initialise hearing request publisher", zap.Error(err))
		}
		publisher = p
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)
	hearingHandlers := handlers.NewHearingHandlers(handlers.HearingHandlersDeps{
		Hearings:        container.Services.Hearings,
		Publisher:       publisher,
		ServiceHearings: container.Services.ServiceHearings,
	})

	router := handlers.NewRouter(
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithHearingRoutes(hearingHandlers.Routes),
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	subscriberLogger := logger.Named("pubsub")
	subscriberOpts := []messaging.SubscriberOption{
		messaging.WithSubscriberLogger(subscriberLogger),
		messaging.WithMaxOutstanding(cfg.PubSub.MaxOutstandingMessages),
	}
	hearingRequests, err := messaging.NewSubscriber(pubsubClient, cfg.PubSub.HearingRequestSubscription,
		di.HearingRequestHandler(container.Services.Hearings, eventLogger), subscriberOpts...)
	if err != nil {
		logger.Fatal("failed to initialise hearing request subscriber", zap.Error(err))
	}
	hmcEvents, err := messaging.NewSubscriber(pubsubClient, cfg.PubSub.HmcEventSubscription,
		di.HmcEventHandler(container.Services.HmcMessages), subscriberOpts...)
	if err != nil {
		logger.Fatal("failed to initialise hmc event subscriber", zap.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	group.Go(func() error {
		serverLogger.Info("sscs hearings api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error { return hearingRequests.Run(groupCtx) })
	group.Go(func() error { return hmcEvents.Run(groupCtx) })

	if container.Ledger != nil && cfg.Idempotency.CleanupInterval > 0 {
		cleaner := idempotency.Cleaner{
			Store:     container.Ledger,
			Interval:  cfg.Idempotency.CleanupInterval,
			BatchSize: cfg.Idempotency.CleanupBatchSize,
			Logger:    observability.NewEventLogger(logger.Named("idempotency")),
		}
		group.Go(func() error { return cleaner.Run(groupCtx) })
	}

	if err := group.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["HEARINGS_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["HEARINGS_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// dependencyChecks adds HMC and the Pub/Sub subscriptions to the readiness probe.
// The hearing request subscription is optional since requests can still be
// processed inline.
func dependencyChecks(cfg config.Config, gateway *hmc.Client, client *pubsub.Client) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:    "hmc",
		Timeout: 2 * time.Second,
		Check:   gateway.Ping,
	}}
	if name := strings.TrimSpace(cfg.PubSub.HmcEventSubscription); name != "" {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "hmcEvents",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				return messaging.SubscriptionExists(ctx, client, name)
			},
		})
	}
	if name := strings.TrimSpace(cfg.PubSub.HearingRequestSubscription); name != "" {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "hearingRequests",
			Timeout:  2 * time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				return messaging.SubscriptionExists(ctx, client, name)
			},
		})
	}
	return checks
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("HEARINGS_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("HEARINGS_FIRESTORE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := lookup("HEARINGS_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentialsFile := lookup("HEARINGS_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secrets that must resolve before startup. Local
// runs talk to stubs and may leave the HMC tokens empty.
func requiredSecretNames(env map[string]string) []string {
	environment := strings.ToLower(strings.TrimSpace(env["HEARINGS_ENVIRONMENT"]))
	if environment == "" || environment == "local" {
		return nil
	}
	return []string{"HMC.AuthToken", "HMC.ServiceAuthToken"}
}
