package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shakthiframing/storefront/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventPayload(t *testing.T) []byte {
	t.Helper()
	event := domain.OrderCreatedEvent{
		OrderID:    "order-1",
		OwnerID:    "user-1",
		OwnerName:  "Shakthi",
		OwnerEmail: "shakthi@example.com",
		TotalPrice: decimal.RequireFromString("90.00"),
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestHandleSendsConfirmationEmail(t *testing.T) {
	var captured struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	emailService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path = %q, want /send", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode send request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer emailService.Close()

	h := NewConfirmationHandler(emailService.URL, emailService.Client(), testLogger())

	if err := h.Handle(context.Background(), eventPayload(t)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if captured.To != "shakthi@example.com" {
		t.Errorf("to = %q, want shakthi@example.com", captured.To)
	}
	if want := "Your Order Confirmation #order-1"; captured.Subject != want {
		t.Errorf("subject = %q, want %q", captured.Subject, want)
	}
}

func TestHandleSwallowsEmailFailure(t *testing.T) {
	emailService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer emailService.Close()

	h := NewConfirmationHandler(emailService.URL, emailService.Client(), testLogger())

	if err := h.Handle(context.Background(), eventPayload(t)); err != nil {
		t.Fatalf("Handle() error = %v, want nil so the offset commits", err)
	}
}

func TestHandleSwallowsMalformedPayload(t *testing.T) {
	h := NewConfirmationHandler("http://email.invalid", http.DefaultClient, testLogger())

	if err := h.Handle(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
}
