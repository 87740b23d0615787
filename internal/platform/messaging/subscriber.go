package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hmcts/sscs-hearings-api/internal/platform/observability"
)

const (
	// DeploymentAttribute carries the HMCTS deployment id on inbound HMC messages.
	DeploymentAttribute = "hmctsDeploymentId"

	meterName = "github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
)

// Message is the transport-neutral view of a delivery handed to handlers.
type Message struct {
	ID              string
	Data            []byte
	Attributes      map[string]string
	PublishTime     time.Time
	DeliveryAttempt int
}

// Attribute returns the attribute value and whether it was present.
func (m Message) Attribute(name string) (string, bool) {
	value, ok := m.Attributes[name]
	return value, ok
}

// Handler processes one delivery. A nil return acks the message; an error nacks
// it so Pub/Sub redelivers or dead-letters it.
type Handler func(ctx context.Context, msg Message) error

// Subscriber pulls a subscription and dispatches every delivery to a Handler.
type Subscriber struct {
	sub       *pubsub.Subscription
	name      string
	projectID string
	handler   Handler
	logger    *zap.Logger

	acked  metric.Int64Counter
	nacked metric.Int64Counter
}

// SubscriberOption customises a Subscriber.
type SubscriberOption func(*Subscriber)

// WithSubscriberLogger sets the base logger for message scoped logs.
func WithSubscriberLogger(logger *zap.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxOutstanding bounds how many deliveries are handled concurrently.
func WithMaxOutstanding(n int) SubscriberOption {
	return func(s *Subscriber) {
		if n > 0 {
			s.sub.ReceiveSettings.MaxOutstandingMessages = n
			s.sub.ReceiveSettings.NumGoroutines = 1
		}
	}
}

// NewSubscriber binds handler to the named subscription.
func NewSubscriber(client *pubsub.Client, name string, handler Handler, opts ...SubscriberOption) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("messaging: client is required")
	}
	if name == "" {
		return nil, errors.New("messaging: subscription name is required")
	}
	if handler == nil {
		return nil, errors.New("messaging: handler is required")
	}
	s := &Subscriber{
		sub:       client.Subscription(name),
		name:      name,
		projectID: client.Project(),
		handler:   handler,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	meter := otel.GetMeterProvider().Meter(meterName)
	var err error
	if s.acked, err = meter.Int64Counter("messaging.deliveries.acked"); err != nil {
		s.logger.Warn("messaging: unable to register ack counter", zap.Error(err))
	}
	if s.nacked, err = meter.Int64Counter("messaging.deliveries.nacked"); err != nil {
		s.logger.Warn("messaging: unable to register nack counter", zap.Error(err))
	}
	return s, nil
}

// Name returns the subscription name.
func (s *Subscriber) Name() string { return s.name }

// Run receives until ctx is cancelled. Cancellation is a clean shutdown and
// returns nil.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("subscriber started", zap.String("subscription", s.name))
	err := s.sub.Receive(ctx, func(ctx context.Context, pm *pubsub.Message) {
		msg := Message{
			ID:          pm.ID,
			Data:        pm.Data,
			Attributes:  normalizeAttributes(pm.Attributes),
			PublishTime: pm.PublishTime,
		}
		if pm.DeliveryAttempt != nil {
			msg.DeliveryAttempt = *pm.DeliveryAttempt
		}
		if s.dispatch(ctx, msg) {
			pm.Ack()
		} else {
			pm.Nack()
		}
	})
	s.logger.Info("subscriber stopped", zap.String("subscription", s.name))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dispatch runs the handler and reports whether the delivery should be acked.
// Handler panics are converted to a nack.
func (s *Subscriber) dispatch(ctx context.Context, msg Message) (ack bool) {
	ctx, end := observability.StartMessageSpan(ctx, s.logger, observability.MessageScope{
		ProjectID:    s.projectID,
		Subscription: s.name,
		MessageID:    msg.ID,
		Attempt:      msg.DeliveryAttempt,
	})
	logger := observability.FromContext(ctx)

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("handler panic")
			logger.Error("message handler panicked", zap.Any("panic", rec))
			ack = false
		}
		end(err)
		attrs := metric.WithAttributes(attribute.String("subscription", s.name))
		if ack {
			if s.acked != nil {
				s.acked.Add(ctx, 1, attrs)
			}
			return
		}
		if s.nacked != nil {
			s.nacked.Add(ctx, 1, attrs)
		}
	}()

	err = s.handler(ctx, msg)
	if err != nil {
		logger.Error("message handling failed", zap.Error(err), zap.Int("delivery_attempt", msg.DeliveryAttempt))
		return false
	}
	return true
}

// normalizeAttributes trims attribute keys and values and drops entries whose
// key is blank, so lookups such as DeploymentAttribute are exact.
func normalizeAttributes(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		result[trimmed] = strings.TrimSpace(value)
	}
	return result
}
