package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/httpx"
	"github.com/hmcts/sscs-hearings-api/internal/services"
)

// HearingHandlers exposes the hearing trigger and the scheduler callbacks.
type HearingHandlers struct {
	hearings        services.HearingsService
	publisher       services.HearingRequestPublisher
	serviceHearings services.ServiceHearingsService
}

// HearingHandlersDeps wires HearingHandlers. When Publisher is set, hearing
// requests are queued instead of processed inline.
type HearingHandlersDeps struct {
	Hearings        services.HearingsService
	Publisher       services.HearingRequestPublisher
	ServiceHearings services.ServiceHearingsService
}

// NewHearingHandlers constructs the hearing handler set.
func NewHearingHandlers(deps HearingHandlersDeps) *HearingHandlers {
	return &HearingHandlers{
		hearings:        deps.Hearings,
		publisher:       deps.Publisher,
		serviceHearings: deps.ServiceHearings,
	}
}

// Routes registers the hearing endpoints.
func (h *HearingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/hearings", h.requestHearing)
	r.Post("/serviceHearingValues", h.serviceHearingValues)
	r.Post("/serviceLinkedCases", h.serviceLinkedCases)
}

type hearingRequestPayload struct {
	CaseID             string `json:"ccdCaseId"`
	HearingState       string `json:"hearingState"`
	CancellationReason string `json:"cancellationReason,omitempty"`
	HearingRoute       string `json:"hearingRoute,omitempty"`
}

type hearingAcceptedResponse struct {
	CaseID       string `json:"ccdCaseId"`
	HearingState string `json:"hearingState"`
	MessageID    string `json:"messageId,omitempty"`
}

type serviceHearingRequest struct {
	CaseID string `json:"caseId"`
}

func (h *HearingHandlers) requestHearing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.hearings == nil && h.publisher == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "hearing service not available", http.StatusServiceUnavailable))
		return
	}

	var payload hearingRequestPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	request, err := payload.toRequest()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	resp := hearingAcceptedResponse{CaseID: request.CaseID, HearingState: string(request.State)}
	if h.publisher != nil {
		id, err := h.publisher.PublishHearingRequest(ctx, request)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("publish_failed", "unable to queue hearing request", http.StatusServiceUnavailable))
			return
		}
		resp.MessageID = id
		httpx.WriteJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := h.hearings.ProcessHearingRequest(ctx, request); err != nil {
		writeHearingError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, resp)
}

func (p hearingRequestPayload) toRequest() (domain.HearingRequest, error) {
	caseID := strings.TrimSpace(p.CaseID)
	if caseID == "" {
		return domain.HearingRequest{}, errors.New("ccdCaseId is required")
	}
	state := domain.ParseHearingState(p.HearingState)
	if !state.Valid() {
		return domain.HearingRequest{}, errors.New("hearingState is not supported")
	}
	request := domain.HearingRequest{
		CaseID:       caseID,
		State:        state,
		HearingRoute: domain.HearingRoute(strings.TrimSpace(p.HearingRoute)),
	}
	if raw := strings.TrimSpace(p.CancellationReason); raw != "" {
		reason, ok := domain.ParseCancellationReason(raw)
		if !ok {
			return domain.HearingRequest{}, errors.New("cancellationReason is not supported")
		}
		request.CancellationReason = &reason
	}
	return request, nil
}

func (h *HearingHandlers) serviceHearingValues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.decodeServiceRequest(w, r)
	if !ok {
		return
	}
	values, err := h.serviceHearings.GetServiceHearingValues(ctx, caseID)
	if err != nil {
		writeHearingError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, values)
}

func (h *HearingHandlers) serviceLinkedCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.decodeServiceRequest(w, r)
	if !ok {
		return
	}
	linked, err := h.serviceHearings.GetServiceLinkedCases(ctx, caseID)
	if err != nil {
		writeHearingError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, linked)
}

func (h *HearingHandlers) decodeServiceRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.serviceHearings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service hearings not available", http.StatusServiceUnavailable))
		return "", false
	}
	var req serviceHearingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return "", false
	}
	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "caseId is required", http.StatusBadRequest))
		return "", false
	}
	return caseID, true
}

func writeHearingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var exhausted *services.ExhaustedRetryError
	switch {
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrUnhandleableHearingState),
		errors.Is(err, services.ErrListing):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCaseNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("case_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrHearingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("hearing_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrHearingGateway):
		httpx.WriteError(ctx, w, httpx.NewError("scheduler_error", "hearing scheduler call failed", http.StatusBadGateway))
	case errors.As(err, &exhausted):
		httpx.WriteError(ctx, w, httpx.NewError("case_update_exhausted", "case update failed after retries", http.StatusServiceUnavailable).
			WithDetails(map[string]any{"attempts": exhausted.Attempts}))
	case errors.Is(err, services.ErrUpdateCase):
		httpx.WriteError(ctx, w, httpx.NewError("case_update_failed", "case update failed", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("hearing_error", "failed to process hearing request", http.StatusInternalServerError))
	}
}
