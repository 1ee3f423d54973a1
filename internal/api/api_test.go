package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/funnelworks/leadpipe/internal/flow"
	"github.com/funnelworks/leadpipe/internal/messaging"
	"github.com/funnelworks/leadpipe/internal/models"
	"github.com/funnelworks/leadpipe/internal/store"
)

// stubTransport records outbound traffic for handler tests.
type stubTransport struct {
	mu    sync.Mutex
	texts []string
	lists []messaging.ChoiceList
}

func (m *stubTransport) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return messaging.CanonicalizePhone(recipient)
}

func (m *stubTransport) SendText(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, body)
	return nil
}

func (m *stubTransport) SendChoiceList(ctx context.Context, to string, list messaging.ChoiceList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, list)
	return nil
}

func (m *stubTransport) Start(ctx context.Context) error   { return nil }
func (m *stubTransport) Stop() error                       { return nil }
func (m *stubTransport) Responses() <-chan models.Response { return nil }

func newTestServer(t *testing.T) (*Server, store.Store, *stubTransport) {
	t.Helper()
	st := store.NewInMemoryStore()
	transport := &stubTransport{}
	leadFlow := flow.NewLeadFlow(st, transport)
	return NewServer(st, transport, leadFlow), st, transport
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestWebhookDrivesFlow(t *testing.T) {
	srv, st, transport := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook", `{
		"data": {
			"key": {"remoteJid": "5511912345678@s.whatsapp.net"},
			"pushName": "Maria",
			"message": {"conversation": "Gostei muito!"}
		}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeAPIResponse(t, rec).Status; got != string(models.APIStatusOK) {
		t.Errorf("response status = %q", got)
	}

	lead, err := st.GetLead("5511912345678")
	if err != nil || lead == nil {
		t.Fatalf("lead not created: %v", err)
	}
	if lead.Status != models.StatusInterested {
		t.Errorf("lead status = %q, want INTERESTED", lead.Status)
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.lists) != 1 {
		t.Errorf("expected the offer list to be sent, got %d lists", len(transport.lists))
	}
}

func TestWebhookIgnoresAcks(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook", `{"event": "message.ack", "data": {}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, ignored payloads must still be acknowledged", rec.Code)
	}
	if got := decodeAPIResponse(t, rec).Status; got != string(models.APIStatusIgnored) {
		t.Errorf("response status = %q, want ignored", got)
	}
}

func TestWebhookBadJSONIsIgnored(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/webhook", `{not json`)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200 so the bridge does not retry", rec.Code)
	}
	if got := decodeAPIResponse(t, rec).Status; got != string(models.APIStatusIgnored) {
		t.Errorf("response status = %q, want ignored", got)
	}
}

func TestMessageHandlerValidation(t *testing.T) {
	srv, _, transport := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/message", `{"to": "5511912345678"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing body should be 400, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/message", `{"to": "5511912345678", "body": "oi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.texts) != 1 || transport.texts[0] != "oi" {
		t.Errorf("message not sent: %v", transport.texts)
	}
}

func TestCampaignStartHandler(t *testing.T) {
	srv, st, transport := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/campaign/start", `{"phone": "5511912345678", "name": "Maria"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("campaign status = %d: %s", rec.Code, rec.Body.String())
	}

	lead, err := st.GetLead("5511912345678")
	if err != nil || lead == nil {
		t.Fatalf("lead not created: %v", err)
	}
	if lead.Status != models.StatusContacted {
		t.Errorf("lead status = %q, want CONTACTED", lead.Status)
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.lists) != 1 {
		t.Errorf("feedback list not sent")
	}
}

func TestCampaignBatchHandlerQueues(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/campaign/batch",
		`{"targets": [{"phone": "5511912345678"}], "delay_ms": 1}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("batch status = %d, want 202", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/campaign/batch", `{"targets": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch should be 400, got %d", rec.Code)
	}
}

func TestLeadsHandler(t *testing.T) {
	srv, st, _ := newTestServer(t)
	if _, err := st.CreateLead(models.Lead{Phone: "5511912345678", Status: models.StatusNew}); err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/leads", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leads status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/leads?status=BOGUS", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status filter should be 400, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/leads", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /leads should be 405, got %d", rec.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	srv, st, _ := newTestServer(t)
	if _, err := st.CreateLead(models.Lead{Phone: "5511912345678", Status: models.StatusNew}); err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("stats response status = %q", resp.Status)
	}
}
