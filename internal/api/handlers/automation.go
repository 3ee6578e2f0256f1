package handlers

import (
	"context"
	"net/http"

	"github.com/google/go-github/v57/github"

	"github.com/henrib/lumen/internal/api"
	"github.com/henrib/lumen/internal/service"
)

type IngestionService interface {
	Process(ctx context.Context, events []service.AutomationEvent) (*service.IngestResult, error)
}

// AutomationHandler receives GitHub webhooks and turns them into learning
// entries.
type AutomationHandler struct {
	ingest IngestionService
	secret []byte
}

func NewAutomationHandler(ingest IngestionService, webhookSecret string) *AutomationHandler {
	return &AutomationHandler{ingest: ingest, secret: []byte(webhookSecret)}
}

type WebhookResponse struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Reason  string   `json:"reason,omitempty"`
	Matched string   `json:"matched,omitempty"`
	Titles  []string `json:"titles,omitempty"`
}

// GitHub handles push and pull_request webhook deliveries. Signature
// verification rejects everything not signed with the shared secret;
// unsupported event types acknowledge with 200 so GitHub does not retry.
func (h *AutomationHandler) GitHub(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		api.Error(w, http.StatusBadRequest, "missing delivery id")
		return
	}

	var events []service.AutomationEvent
	switch e := event.(type) {
	case *github.PushEvent:
		events = service.ParsePushEvent(e, deliveryID)
	case *github.PullRequestEvent:
		events = service.ParsePullRequestEvent(e, deliveryID)
	default:
		api.Success(w, http.StatusOK, WebhookResponse{Reason: "event_type_ignored"})
		return
	}

	result, err := h.ingest.Process(r.Context(), events)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, WebhookResponse{
		Created: result.Created,
		Skipped: result.Skipped,
		Reason:  result.Reason,
		Matched: result.Matched,
		Titles:  result.Titles,
	})
}
