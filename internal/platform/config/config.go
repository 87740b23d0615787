package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix = "HEARINGS_"

	defaultEnvFile                = ".env"
	defaultPort                   = "8080"
	defaultReadTimeout            = 15 * time.Second
	defaultWriteTimeout           = 30 * time.Second
	defaultIdleTimeout            = 120 * time.Second
	defaultEnvironment            = "local"
	defaultCaseCollection         = "cases"
	defaultHearingRequestTopic    = "hearing-requests"
	defaultHearingRequestSub      = "hearing-requests-sub"
	defaultHmcEventSub            = "hmc-to-sscs-sub"
	defaultMaxOutstanding         = 10
	defaultHMCTimeout             = 20 * time.Second
	defaultHMCRequestsPerSecond   = 10
	defaultHMCBurst               = 5
	defaultServiceCode            = "BBA3"
	defaultRetryMaxAttempts       = 3
	defaultRetryInitialInterval   = time.Second
	defaultRetryMultiplier        = 2.0
	defaultRetryMaxInterval       = 10 * time.Second
	defaultVenueCacheTTL          = time.Hour
	defaultVenueCacheSize         = 1000
	defaultIdempotencyCollection  = "hmc_message_ledger"
	defaultIdempotencyTTL         = 24 * time.Hour
	defaultIdempotencyInterval    = time.Hour
	defaultIdempotencyBatchSize   = 200
	defaultIdempotencyPendingHold = 5 * time.Minute
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment   string
	Server        ServerConfig
	Firestore     FirestoreConfig
	PubSub        PubSubConfig
	HMC           HMCConfig
	Service       ServiceConfig
	Retry         RetryConfig
	Features      FeatureFlags
	ReferenceData ReferenceDataConfig
	Idempotency   IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores case store parameters.
type FirestoreConfig struct {
	ProjectID      string
	DatabaseID     string
	EmulatorHost   string
	CaseCollection string
}

// PubSubConfig names the topics and subscriptions the service uses.
type PubSubConfig struct {
	ProjectID                  string
	EmulatorHost               string
	HearingRequestTopic        string
	HearingRequestSubscription string
	HmcEventSubscription       string
	MaxOutstandingMessages     int
}

// HMCConfig points at the hearing management component.
type HMCConfig struct {
	BaseURL           string
	AuthToken         string
	ServiceAuthToken  string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ServiceConfig identifies this deployment to HMC.
type ServiceConfig struct {
	Code            string
	DeploymentID    string
	CaseDeepLinkURL string
}

// RetryConfig bounds the case write-back retry loop.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	DeploymentFilter bool
	Adjournment      bool
	InboundDedupe    bool
}

// ReferenceDataConfig locates listing reference tables. An empty File uses the
// embedded defaults.
type ReferenceDataConfig struct {
	File          string
	VenueCacheTTL time.Duration
	VenueCacheMax int
}

// IdempotencyConfig controls the inbound message ledger.
type IdempotencyConfig struct {
	Collection       string
	TTL              time.Duration
	PendingHold      time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved empty.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed identifiers safe to log.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map. Values in the map take precedence
// over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "HMC.AuthToken") that must resolve
// to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the effective environment after applying the same
// precedence as Load (dotenv < OS env < explicit map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and Secret Manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		key = envPrefix + key
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:      stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			DatabaseID:     stringWithDefault(lookup, "FIRESTORE_DATABASE_ID", ""),
			EmulatorHost:   stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
			CaseCollection: stringWithDefault(lookup, "FIRESTORE_CASE_COLLECTION", defaultCaseCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:                  stringWithDefault(lookup, "PUBSUB_PROJECT_ID", ""),
			EmulatorHost:               stringWithDefault(lookup, "PUBSUB_EMULATOR_HOST", ""),
			HearingRequestTopic:        stringWithDefault(lookup, "PUBSUB_HEARING_REQUEST_TOPIC", defaultHearingRequestTopic),
			HearingRequestSubscription: stringWithDefault(lookup, "PUBSUB_HEARING_REQUEST_SUBSCRIPTION", defaultHearingRequestSub),
			HmcEventSubscription:       stringWithDefault(lookup, "PUBSUB_HMC_EVENT_SUBSCRIPTION", defaultHmcEventSub),
			MaxOutstandingMessages:     intWithDefault(lookup, "PUBSUB_MAX_OUTSTANDING", defaultMaxOutstanding),
		},
		HMC: HMCConfig{
			BaseURL:           strings.TrimRight(stringWithDefault(lookup, "HMC_BASE_URL", ""), "/"),
			AuthToken:         stringWithDefault(lookup, "HMC_AUTH_TOKEN", ""),
			ServiceAuthToken:  stringWithDefault(lookup, "HMC_SERVICE_AUTH_TOKEN", ""),
			Timeout:           durationWithDefault(lookup, "HMC_TIMEOUT", defaultHMCTimeout),
			RequestsPerSecond: floatWithDefault(lookup, "HMC_REQUESTS_PER_SECOND", defaultHMCRequestsPerSecond),
			Burst:             intWithDefault(lookup, "HMC_BURST", defaultHMCBurst),
		},
		Service: ServiceConfig{
			Code:            stringWithDefault(lookup, "SERVICE_CODE", defaultServiceCode),
			DeploymentID:    stringWithDefault(lookup, "SERVICE_DEPLOYMENT_ID", ""),
			CaseDeepLinkURL: strings.TrimRight(stringWithDefault(lookup, "SERVICE_CASE_DEEP_LINK_URL", ""), "/"),
		},
		Retry: RetryConfig{
			MaxAttempts:     intWithDefault(lookup, "RETRY_MAX_ATTEMPTS", defaultRetryMaxAttempts),
			InitialInterval: durationWithDefault(lookup, "RETRY_INITIAL_INTERVAL", defaultRetryInitialInterval),
			Multiplier:      floatWithDefault(lookup, "RETRY_MULTIPLIER", defaultRetryMultiplier),
			MaxInterval:     durationWithDefault(lookup, "RETRY_MAX_INTERVAL", defaultRetryMaxInterval),
		},
		Features: FeatureFlags{
			DeploymentFilter: boolWithDefault(lookup, "FEATURE_DEPLOYMENT_FILTER", false),
			Adjournment:      boolWithDefault(lookup, "FEATURE_ADJOURNMENT", false),
			InboundDedupe:    boolWithDefault(lookup, "FEATURE_INBOUND_DEDUPE", false),
		},
		ReferenceData: ReferenceDataConfig{
			File:          stringWithDefault(lookup, "REFDATA_FILE", ""),
			VenueCacheTTL: durationWithDefault(lookup, "REFDATA_VENUE_CACHE_TTL", defaultVenueCacheTTL),
			VenueCacheMax: intWithDefault(lookup, "REFDATA_VENUE_CACHE_MAX", defaultVenueCacheSize),
		},
		Idempotency: IdempotencyConfig{
			Collection:       stringWithDefault(lookup, "IDEMPOTENCY_COLLECTION", defaultIdempotencyCollection),
			TTL:              durationWithDefault(lookup, "IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			PendingHold:      durationWithDefault(lookup, "IDEMPOTENCY_PENDING_HOLD", defaultIdempotencyPendingHold),
			CleanupInterval:  durationWithDefault(lookup, "IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	// Pub/Sub shares the Firestore project unless configured separately.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"HMC.AuthToken", &cfg.HMC.AuthToken},
		{"HMC.ServiceAuthToken", &cfg.HMC.ServiceAuthToken},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	require := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	require(cfg.Server.Port != "", "Server.Port")
	require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	require(cfg.Firestore.CaseCollection != "", "Firestore.CaseCollection")
	require(cfg.PubSub.HearingRequestSubscription != "", "PubSub.HearingRequestSubscription")
	require(cfg.PubSub.HmcEventSubscription != "", "PubSub.HmcEventSubscription")
	require(cfg.PubSub.MaxOutstandingMessages > 0, "PubSub.MaxOutstandingMessages")
	require(cfg.HMC.BaseURL != "", "HMC.BaseURL")
	require(cfg.HMC.RequestsPerSecond > 0, "HMC.RequestsPerSecond")
	require(cfg.HMC.Burst > 0, "HMC.Burst")
	require(strings.TrimSpace(cfg.Service.Code) != "", "Service.Code")
	require(cfg.Retry.MaxAttempts > 0, "Retry.MaxAttempts")
	require(cfg.Retry.InitialInterval > 0, "Retry.InitialInterval")
	require(cfg.Retry.Multiplier >= 1, "Retry.Multiplier")
	require(cfg.ReferenceData.VenueCacheMax > 0, "ReferenceData.VenueCacheMax")
	require(cfg.Idempotency.TTL > 0, "Idempotency.TTL")
	require(cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	require(cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
