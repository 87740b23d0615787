package messaging

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/hmcts/sscs-hearings-api/internal/domain"
)

// CorrelationAttribute is set on every published hearing request.
const CorrelationAttribute = "correlationId"

// HearingRequestPublisher enqueues hearing requests on the topic consumed by the
// hearing request subscriber.
type HearingRequestPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

// NewHearingRequestPublisher constructs a publisher for topic.
func NewHearingRequestPublisher(topic *pubsub.Topic) (*HearingRequestPublisher, error) {
	if topic == nil {
		return nil, errors.New("messaging: topic is required")
	}
	return &HearingRequestPublisher{topic: topic, marshal: json.Marshal, now: time.Now}, nil
}

// PublishHearingRequest publishes req and returns the correlation id attached to it.
func (p *HearingRequestPublisher) PublishHearingRequest(ctx context.Context, req domain.HearingRequest) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("messaging: publisher not initialised")
	}
	data, err := p.marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal hearing request: %w", err)
	}

	correlationID := ulid.MustNew(ulid.Timestamp(p.now()), rand.Reader).String()
	attrs := map[string]string{
		CorrelationAttribute: correlationID,
		"caseId":             req.CaseID,
		"hearingState":       string(req.State),
	}
	if req.HearingRoute != "" {
		attrs["hearingRoute"] = string(req.HearingRoute)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return "", fmt.Errorf("publish hearing request: %w", err)
	}
	return correlationID, nil
}
