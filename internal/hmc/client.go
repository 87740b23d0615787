// Package hmc is the HTTP client for the hearing management component that
// schedules and lists tribunal hearings.
package hmc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4 << 10
	instrumentation  = "github.com/hmcts/sscs-hearings-api/internal/hmc"

	headerAuthorization        = "Authorization"
	headerServiceAuthorization = "ServiceAuthorization"
	headerDeploymentID         = "hmctsDeploymentId"
)

// ErrNotFound is returned when the hearing or case is unknown to HMC.
var ErrNotFound = errors.New("hmc: not found")

// StatusError describes a non-success response from HMC.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("hmc: %s returned status %d", e.Op, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps 404 responses onto ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e != nil && e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the HMC REST API. All calls share one rate limiter.
type Client struct {
	baseURL      string
	authToken    string
	serviceToken string
	deploymentID string
	http         *http.Client
	limiter      *rate.Limiter
	tracer       trace.Tracer
	calls        metric.Int64Counter
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithDeploymentID tags outbound requests with the deployment id so HMC routes
// status messages back to this deployment.
func WithDeploymentID(id string) Option {
	return func(c *Client) { c.deploymentID = strings.TrimSpace(id) }
}

// WithLimiter overrides the outbound rate limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// NewClient builds a client from configuration.
func NewClient(cfg config.HMCConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("hmc: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("hmc: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:      base,
		authToken:    strings.TrimSpace(cfg.AuthToken),
		serviceToken: strings.TrimSpace(cfg.ServiceAuthToken),
		http:         &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(limit, burst),
		tracer:       otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	calls, err := otel.GetMeterProvider().Meter(instrumentation).Int64Counter("hmc.calls",
		metric.WithDescription("HMC API calls by operation and outcome"))
	if err == nil {
		c.calls = calls
	}
	return c, nil
}

// CreateHearing submits a new hearing request.
func (c *Client) CreateHearing(ctx context.Context, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	var out domain.HmcUpdateResponse
	err := c.do(ctx, "create hearing", http.MethodPost, c.endpoint("hearing"), nil, payload, &out)
	return out, err
}

// UpdateHearing amends the hearing request hearingID.
func (c *Client) UpdateHearing(ctx context.Context, hearingID string, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	var out domain.HmcUpdateResponse
	if err := requireID("update hearing", hearingID); err != nil {
		return out, err
	}
	err := c.do(ctx, "update hearing", http.MethodPut, c.endpoint("hearing", hearingID), nil, payload, &out)
	return out, err
}

// GetHearing loads one hearing request.
func (c *Client) GetHearing(ctx context.Context, hearingID string) (domain.HearingGetResponse, error) {
	var out domain.HearingGetResponse
	if err := requireID("get hearing", hearingID); err != nil {
		return out, err
	}
	err := c.do(ctx, "get hearing", http.MethodGet, c.endpoint("hearing", hearingID), nil, nil, &out)
	return out, err
}

// CancelHearing cancels the hearing request hearingID.
func (c *Client) CancelHearing(ctx context.Context, hearingID string, payload domain.HearingCancelRequestPayload) (domain.HmcUpdateResponse, error) {
	var out domain.HmcUpdateResponse
	if err := requireID("cancel hearing", hearingID); err != nil {
		return out, err
	}
	err := c.do(ctx, "cancel hearing", http.MethodDelete, c.endpoint("hearing", hearingID), nil, payload, &out)
	return out, err
}

// GetHearings lists every hearing HMC holds for caseID.
func (c *Client) GetHearings(ctx context.Context, caseID string) (domain.HearingsGetResponse, error) {
	var out domain.HearingsGetResponse
	if err := requireID("get hearings", caseID); err != nil {
		return out, err
	}
	err := c.do(ctx, "get hearings", http.MethodGet, c.endpoint("hearings", caseID), nil, nil, &out)
	return out, err
}

// PartiesNotified records that the parties were notified of version of hearingID.
func (c *Client) PartiesNotified(ctx context.Context, hearingID string, version int64, payload domain.PartiesNotifiedPayload) error {
	if err := requireID("parties notified", hearingID); err != nil {
		return err
	}
	query := url.Values{"version": []string{strconv.FormatInt(version, 10)}}
	return c.do(ctx, "parties notified", http.MethodPut, c.endpoint("partiesNotified", hearingID), query, payload, nil)
}

// Ping checks that HMC accepts connections. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("health"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hmc: ping: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, query url.Values, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "hmc "+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.record(ctx, op, err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("hmc: %s: rate limit: %w", op, err)
	}

	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("hmc: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("hmc: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set(headerAuthorization, bearer(c.authToken))
	}
	if c.serviceToken != "" {
		req.Header.Set(headerServiceAuthorization, bearer(c.serviceToken))
	}
	if c.deploymentID != "" {
		req.Header.Set(headerDeploymentID, c.deploymentID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hmc: %s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("hmc: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) record(ctx context.Context, op string, err error) {
	if c.calls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(strings.TrimSpace(part))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func requireID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("hmc: %s: id is required", op)
	}
	return nil
}

func bearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	return strings.TrimSpace(string(data))
}
