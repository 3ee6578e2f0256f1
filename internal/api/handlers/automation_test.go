package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/henrib/lumen/internal/service"
)

const testWebhookSecret = "hook-secret"

// MockIngestionService is a mock implementation of IngestionService
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Process(ctx context.Context, events []service.AutomationEvent) (*service.IngestResult, error) {
	args := m.Called(ctx, events)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func signedWebhookRequest(t *testing.T, eventType, deliveryID string, payload []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/automation/github", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	if deliveryID != "" {
		req.Header.Set("X-GitHub-Delivery", deliveryID)
	}

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

const pushPayload = `{
	"ref": "refs/heads/main",
	"repository": {"full_name": "henrib/lumen"},
	"commits": [{"message": "Add retrieval fallback"}]
}`

func TestGitHub_ValidPushProcessed(t *testing.T) {
	ingest := new(MockIngestionService)
	ingest.On("Process", mock.Anything, mock.MatchedBy(func(events []service.AutomationEvent) bool {
		return len(events) == 1 && events[0].DeliveryID == "d-1"
	})).Return(&service.IngestResult{Created: 1, Titles: []string{"2. RAG Systems"}}, nil)

	h := NewAutomationHandler(ingest, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.GitHub(rec, signedWebhookRequest(t, "push", "d-1", []byte(pushPayload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp WebhookResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, []string{"2. RAG Systems"}, resp.Titles)
}

func TestGitHub_BadSignatureRejected(t *testing.T) {
	ingest := new(MockIngestionService)
	h := NewAutomationHandler(ingest, testWebhookSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/automation/github", bytes.NewReader([]byte(pushPayload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", "d-2")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	rec := httptest.NewRecorder()
	h.GitHub(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ingest.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestGitHub_MissingDeliveryIDRejected(t *testing.T) {
	ingest := new(MockIngestionService)
	h := NewAutomationHandler(ingest, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.GitHub(rec, signedWebhookRequest(t, "push", "", []byte(pushPayload)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ingest.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestGitHub_UnsupportedEventAcknowledged(t *testing.T) {
	ingest := new(MockIngestionService)
	h := NewAutomationHandler(ingest, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.GitHub(rec, signedWebhookRequest(t, "star", "d-3", []byte(`{"action":"created"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp WebhookResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "event_type_ignored", resp.Reason)
	ingest.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestGitHub_MalformedPayloadRejected(t *testing.T) {
	ingest := new(MockIngestionService)
	h := NewAutomationHandler(ingest, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.GitHub(rec, signedWebhookRequest(t, "push", "d-4", []byte("{oops")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGitHub_DuplicateDeliveryReported(t *testing.T) {
	ingest := new(MockIngestionService)
	ingest.On("Process", mock.Anything, mock.Anything).
		Return(&service.IngestResult{Skipped: 1, Reason: "duplicate_delivery"}, nil)
	h := NewAutomationHandler(ingest, testWebhookSecret)

	rec := httptest.NewRecorder()
	h.GitHub(rec, signedWebhookRequest(t, "push", "d-5", []byte(pushPayload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp WebhookResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "duplicate_delivery", resp.Reason)
	assert.Equal(t, 1, resp.Skipped)
}
