package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/funnelworks/leadpipe/internal/twiliowhatsapp"
	"github.com/funnelworks/leadpipe/internal/whatsapp"
)

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+55 (11) 91234-5678", "5511912345678", false},
		{"5511912345678", "5511912345678", false},
		{"whatsapp:+5511912345678", "5511912345678", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true}, // too short
	}
	for _, c := range cases {
		got, err := CanonicalizePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("CanonicalizePhone(%q) expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizePhone(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWhatsAppServiceSendText(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendText(context.Background(), "+55 11 91234-5678", "Olá!"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if len(mock.Messages) != 1 {
		t.Fatalf("got %d sent messages, want 1", len(mock.Messages))
	}
	if mock.Messages[0].To != "5511912345678" {
		t.Errorf("recipient not canonicalized: %q", mock.Messages[0].To)
	}
	if mock.Messages[0].Body != "Olá!" {
		t.Errorf("body = %q", mock.Messages[0].Body)
	}
}

func TestWhatsAppServiceSendChoiceList(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	list := ChoiceList{
		Title:        "Feedback",
		Body:         "O que achou?",
		ButtonText:   "Responder",
		SectionTitle: "Opções",
		Options: []ChoiceOption{
			{ID: "feedback_positive", Label: "Gostei muito!"},
			{ID: "feedback_negative", Label: "Não gostei"},
		},
	}
	if err := svc.SendChoiceList(context.Background(), "5511912345678", list); err != nil {
		t.Fatalf("SendChoiceList failed: %v", err)
	}
	if len(mock.Lists) != 1 {
		t.Fatalf("got %d sent lists, want 1", len(mock.Lists))
	}
	sent := mock.Lists[0]
	if len(sent.Rows) != 2 || sent.Rows[0].ID != "feedback_positive" {
		t.Errorf("list rows not preserved: %+v", sent.Rows)
	}
}

func TestWhatsAppServiceRejectsEmptyList(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.SendChoiceList(context.Background(), "5511912345678", ChoiceList{}); err == nil {
		t.Error("empty choice list should be rejected")
	}
}

func TestWhatsAppServiceStoppedSend(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendText(context.Background(), "5511912345678", "oi"); err != ErrServiceStopped {
		t.Errorf("send after stop = %v, want ErrServiceStopped", err)
	}
}

func TestTwilioServiceRendersListAsText(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	list := ChoiceList{
		Body: "Podemos agendar?",
		Options: []ChoiceOption{
			{ID: "slot_1", Label: "03/09/2026 às 09:00"},
			{ID: "slot_2", Label: "03/09/2026 às 09:30"},
		},
	}
	if err := svc.SendChoiceList(context.Background(), "5511912345678", list); err != nil {
		t.Fatalf("SendChoiceList failed: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("got %d sent messages, want 1", len(mock.SentMessages))
	}
	body := mock.SentMessages[0].Body
	if !strings.Contains(body, "1. 03/09/2026 às 09:00") || !strings.Contains(body, "2. 03/09/2026 às 09:30") {
		t.Errorf("numbered options missing from rendered list:\n%s", body)
	}
	if mock.SentMessages[0].To != "+5511912345678" {
		t.Errorf("Twilio recipient = %q, want E.164 with plus", mock.SentMessages[0].To)
	}
}

func TestTwilioWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5511912345678")
	form.Set("Body", "Gostei muito!")
	form.Set("ProfileName", "Maria")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "5511912345678" {
			t.Errorf("response From = %q, want canonical digits", resp.From)
		}
		if resp.Body != "Gostei muito!" || resp.Name != "Maria" {
			t.Errorf("response fields: %+v", resp)
		}
	default:
		t.Fatal("no response emitted")
	}
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5511912345678")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("webhook status = %d, want 400", rec.Code)
	}
}
