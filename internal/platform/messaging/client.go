// Package messaging wraps Cloud Pub/Sub for the hearing request and HMC status
// flows.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
)

const envEmulatorHost = "PUBSUB_EMULATOR_HOST"

// NewClient creates a Pub/Sub client for cfg, pointing at the emulator when one is configured.
func NewClient(ctx context.Context, cfg config.PubSubConfig, opts ...option.ClientOption) (*pubsub.Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("messaging: project id is required")
	}
	host := strings.TrimSpace(cfg.EmulatorHost)
	if host == "" {
		host = strings.TrimSpace(os.Getenv(envEmulatorHost))
	}
	if host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: create client: %w", err)
	}
	return client, nil
}

// SubscriptionExists reports whether the named subscription is reachable. It backs
// the readiness probe.
func SubscriptionExists(ctx context.Context, client *pubsub.Client, name string) error {
	ok, err := client.Subscription(name).Exists(ctx)
	if err != nil {
		return fmt.Errorf("messaging: check subscription %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("messaging: subscription %s does not exist", name)
	}
	return nil
}
