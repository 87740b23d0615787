package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func minimalEnv() map[string]string {
	return map[string]string{
		"HEARINGS_FIRESTORE_PROJECT_ID": "sscs-dev",
		"HEARINGS_HMC_BASE_URL":         "https://hmc.example.com/",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(minimalEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "sscs-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.HMC.BaseURL != "https://hmc.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.HMC.BaseURL)
	}
	if cfg.Service.Code != "BBA3" {
		t.Errorf("expected default service code BBA3, got %s", cfg.Service.Code)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialInterval != time.Second || cfg.Retry.Multiplier != 2 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Features.DeploymentFilter || cfg.Features.Adjournment || cfg.Features.InboundDedupe {
		t.Errorf("expected all features disabled, got %+v", cfg.Features)
	}
	if cfg.Firestore.CaseCollection != defaultCaseCollection {
		t.Errorf("unexpected case collection %s", cfg.Firestore.CaseCollection)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Environment)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"HEARINGS_ENVIRONMENT":                         "PROD",
		"HEARINGS_SERVER_PORT":                         "9090",
		"HEARINGS_SERVER_IDLE_TIMEOUT":                 "2m",
		"HEARINGS_FIRESTORE_PROJECT_ID":                "sscs-prod",
		"HEARINGS_FIRESTORE_DATABASE_ID":               "hearings",
		"HEARINGS_PUBSUB_PROJECT_ID":                   "sscs-messaging",
		"HEARINGS_PUBSUB_HEARING_REQUEST_SUBSCRIPTION": "requests-prod",
		"HEARINGS_PUBSUB_HMC_EVENT_SUBSCRIPTION":       "hmc-prod",
		"HEARINGS_PUBSUB_MAX_OUTSTANDING":              "25",
		"HEARINGS_HMC_BASE_URL":                        "https://hmc.prod",
		"HEARINGS_HMC_AUTH_TOKEN":                      "secret://hmc/idam",
		"HEARINGS_HMC_SERVICE_AUTH_TOKEN":              "sm://hmc/s2s",
		"HEARINGS_HMC_REQUESTS_PER_SECOND":             "2.5",
		"HEARINGS_SERVICE_DEPLOYMENT_ID":               "staging-1",
		"HEARINGS_RETRY_MAX_ATTEMPTS":                  "5",
		"HEARINGS_RETRY_INITIAL_INTERVAL":              "200ms",
		"HEARINGS_FEATURE_DEPLOYMENT_FILTER":           "true",
		"HEARINGS_FEATURE_ADJOURNMENT":                 "on",
		"HEARINGS_FEATURE_INBOUND_DEDUPE":              "1",
		"HEARINGS_REFDATA_VENUE_CACHE_TTL":             "10m",
	}
	secrets := map[string]string{
		"secret://hmc/idam": "idam-token",
		"secret://hmc/s2s":  "s2s-token",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "prod" {
		t.Errorf("expected environment lower-cased, got %s", cfg.Environment)
	}
	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.DatabaseID != "hearings" {
		t.Errorf("unexpected database id %s", cfg.Firestore.DatabaseID)
	}
	if cfg.PubSub.ProjectID != "sscs-messaging" || cfg.PubSub.MaxOutstandingMessages != 25 {
		t.Errorf("unexpected pubsub config %+v", cfg.PubSub)
	}
	if cfg.HMC.AuthToken != "idam-token" {
		t.Errorf("expected resolved auth token, got %s", cfg.HMC.AuthToken)
	}
	if cfg.HMC.ServiceAuthToken != "s2s-token" {
		t.Errorf("expected legacy sm:// reference resolved, got %s", cfg.HMC.ServiceAuthToken)
	}
	if cfg.HMC.RequestsPerSecond != 2.5 {
		t.Errorf("unexpected rps %v", cfg.HMC.RequestsPerSecond)
	}
	if cfg.Service.DeploymentID != "staging-1" {
		t.Errorf("unexpected deployment id %s", cfg.Service.DeploymentID)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialInterval != 200*time.Millisecond {
		t.Errorf("unexpected retry config %+v", cfg.Retry)
	}
	if !cfg.Features.DeploymentFilter || !cfg.Features.Adjournment || !cfg.Features.InboundDedupe {
		t.Errorf("expected all features enabled, got %+v", cfg.Features)
	}
	if cfg.ReferenceData.VenueCacheTTL != 10*time.Minute {
		t.Errorf("unexpected venue cache ttl %s", cfg.ReferenceData.VenueCacheTTL)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "export HEARINGS_SERVER_PORT=7070\nHEARINGS_FIRESTORE_PROJECT_ID='sscs-dot'\nHEARINGS_HMC_BASE_URL=http://localhost:4561\n# comment\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "sscs-dot" {
		t.Errorf("expected quoted project id unwrapped, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{"HEARINGS_RETRY_MAX_ATTEMPTS": "0"}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, f := range validation.Fields() {
		fields[f] = true
	}
	for _, want := range []string{"Firestore.ProjectID", "HMC.BaseURL", "Retry.MaxAttempts"} {
		if !fields[want] {
			t.Errorf("expected %s in %v", want, validation.Fields())
		}
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := minimalEnv()
	env["HEARINGS_HMC_AUTH_TOKEN"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(minimalEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("HMC.ServiceAuthToken"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != redactSecretName("HMC.ServiceAuthToken") {
		t.Fatalf("unexpected redacted names %v", got)
	}
	if got := missing.Names(); len(got) != 1 || got[0] != "HMC.ServiceAuthToken" {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "HEARINGS_FIRESTORE_PROJECT_ID=dot-project\nHEARINGS_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("HEARINGS_FIRESTORE_PROJECT_ID", "os-project")
	t.Setenv("HEARINGS_SECRET_PROJECT_IDS", "prod=project-prod")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"HEARINGS_FIRESTORE_PROJECT_ID": "override-project",
	}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if got := values["HEARINGS_FIRESTORE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["HEARINGS_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["HEARINGS_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}
